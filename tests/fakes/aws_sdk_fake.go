package fakes

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// FakeSecretsManagerClient implements secretstore.AWSSecretsManagerAPI.
type FakeSecretsManagerClient struct {
	Strings  map[string]string
	Binaries map[string][]byte
	Errors   map[string]error
}

// NewFakeSecretsManagerClient creates an empty fake client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Strings:  make(map[string]string),
		Binaries: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretString adds a SecretString value
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.Strings[name] = value
}

// AddSecretBinary adds a SecretBinary value
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.Binaries[name] = value
}

// AddError configures the fake to fail for name
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	name := aws.ToString(params.SecretId)

	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if v, ok := f.Strings[name]; ok {
		return &secretsmanager.GetSecretValueOutput{Name: params.SecretId, SecretString: aws.String(v)}, nil
	}
	if v, ok := f.Binaries[name]; ok {
		return &secretsmanager.GetSecretValueOutput{Name: params.SecretId, SecretBinary: append([]byte(nil), v...)}, nil
	}
	return nil, fmt.Errorf("ResourceNotFoundException: Secrets Manager can't find the specified secret %s", name)
}
