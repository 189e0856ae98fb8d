package secretstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSSecretsManagerAPI is the subset of the Secrets Manager client used here.
type AWSSecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore reads secrets from AWS Secrets Manager.
type AWSStore struct {
	client AWSSecretsManagerAPI
}

// NewAWSStore creates a store from the default credential chain.
func NewAWSStore(ctx context.Context, region string) (*AWSStore, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSStoreWithClient(secretsmanager.NewFromConfig(cfg)), nil
}

// NewAWSStoreWithClient wraps an existing client.
func NewAWSStoreWithClient(client AWSSecretsManagerAPI) *AWSStore {
	return &AWSStore{client: client}
}

// Type returns "aws".
func (s *AWSStore) Type() string {
	return TypeAWS
}

// Fetch returns the current version of the secret. name may be a secret
// name or ARN.
func (s *AWSStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, err
	}

	if out.SecretString != nil {
		return []byte(aws.ToString(out.SecretString)), nil
	}
	return append([]byte(nil), out.SecretBinary...), nil
}
