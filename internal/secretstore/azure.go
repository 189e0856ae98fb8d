package secretstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	dserrors "github.com/systmms/zligate/internal/errors"
)

// AzureKeyVaultAPI is the subset of the Key Vault secrets client used here.
type AzureKeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureStore reads secrets from Azure Key Vault.
type AzureStore struct {
	client AzureKeyVaultAPI
}

// NewAzureStore creates a store for vaultURL using DefaultAzureCredential.
func NewAzureStore(vaultURL string) (*AzureStore, error) {
	if vaultURL == "" {
		return nil, dserrors.ConfigError{
			Field:      "secretStore.vaultURL",
			Message:    "vault URL is required for the azure secret store",
			Suggestion: "Set AZURE_KEYVAULT_URL, e.g. https://my-vault.vault.azure.net/",
		}
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	return NewAzureStoreWithCredential(vaultURL, cred)
}

// NewAzureStoreWithCredential creates a store for vaultURL authenticated
// with cred, such as a managed identity or workload identity credential.
func NewAzureStoreWithCredential(vaultURL string, cred azcore.TokenCredential) (*AzureStore, error) {
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	return NewAzureStoreWithClient(client), nil
}

// NewAzureStoreWithClient wraps an existing client.
func NewAzureStoreWithClient(client AzureKeyVaultAPI) *AzureStore {
	return &AzureStore{client: client}
}

// Type returns "azure".
func (s *AzureStore) Type() string {
	return TypeAzure
}

// Fetch returns a secret by name. "name/version" pins a version; otherwise
// the latest is used.
func (s *AzureStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	secretName, version, _ := strings.Cut(name, "/")

	resp, err := s.client.GetSecret(ctx, secretName, version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case http.StatusNotFound:
				return nil, fmt.Errorf("key vault has no secret %s: %w", name, err)
			case http.StatusForbidden:
				return nil, fmt.Errorf("key vault returned 403 Forbidden for %s: %w", name, err)
			}
		}
		return nil, err
	}
	if resp.Value == nil {
		return nil, nil
	}
	return []byte(*resp.Value), nil
}
