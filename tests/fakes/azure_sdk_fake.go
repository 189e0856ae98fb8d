package fakes

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient implements secretstore.AzureKeyVaultAPI.
type FakeAzureKeyVaultClient struct {
	// Secrets maps "name" (latest) or "name/version" to values
	Secrets map[string]string
	Errors  map[string]error
}

// NewFakeAzureKeyVaultClient creates an empty fake client
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecretWithVersion adds a value as both the given version and latest
func (f *FakeAzureKeyVaultClient) AddSecretWithVersion(name, value, version string) {
	f.Secrets[name] = value
	f.Secrets[name+"/"+version] = value
}

// AddError configures the fake to fail for name
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// GetSecret mocks the GetSecret operation
func (f *FakeAzureKeyVaultClient) GetSecret(_ context.Context, name string, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}

	key := name
	if version != "" {
		key = name + "/" + version
	}

	v, ok := f.Secrets[key]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureResponseError(http.StatusNotFound, "SecretNotFound")
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &v}}, nil
}

// AzureResponseError builds the *azcore.ResponseError Key Vault returns for
// a failed request.
func AzureResponseError(status int, code string) error {
	req, _ := http.NewRequest(http.MethodGet, "https://fake.vault.azure.net/secrets/fake", nil)
	return runtime.NewResponseError(&http.Response{
		Status:     http.StatusText(status),
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":"` + code + `","message":"` + code + `"}}`)),
		Request:    req,
	})
}
