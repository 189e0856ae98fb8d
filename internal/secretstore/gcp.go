package secretstore

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	dserrors "github.com/systmms/zligate/internal/errors"
)

// GCPSecretManagerAPI is the subset of the Secret Manager client used here.
type GCPSecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPStore reads secrets from Google Cloud Secret Manager.
type GCPStore struct {
	client    GCPSecretManagerAPI
	projectID string
}

// NewGCPStore creates a store using application default credentials.
// projectID is only needed when secrets are referenced by short name.
func NewGCPStore(ctx context.Context, projectID string, opts ...option.ClientOption) (*GCPStore, error) {
	if projectID == "" {
		projectID = gcpProjectFromEnv()
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	return NewGCPStoreWithClient(client, projectID), nil
}

// NewGCPStoreWithClient wraps an existing client.
func NewGCPStoreWithClient(client GCPSecretManagerAPI, projectID string) *GCPStore {
	return &GCPStore{client: client, projectID: projectID}
}

// Type returns "gcp".
func (s *GCPStore) Type() string {
	return TypeGCP
}

// Fetch accesses a secret version. name may be a full resource name
// (projects/p/secrets/s[/versions/v]) or a bare secret ID, which resolves
// to the latest version in the configured project.
func (s *GCPStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	resource, err := s.resourceName(name)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return nil, err
	}
	if resp.GetPayload() == nil {
		return nil, nil
	}

	data := resp.GetPayload().GetData()
	if sum := resp.GetPayload().DataCrc32C; sum != nil {
		if int64(crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli))) != *sum {
			return nil, fmt.Errorf("payload checksum mismatch for %s", resource)
		}
	}

	return data, nil
}

// Close releases the underlying client if it supports it.
func (s *GCPStore) Close() error {
	if c, ok := s.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *GCPStore) resourceName(name string) (string, error) {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name, nil
		}
		return name + "/versions/latest", nil
	}

	if s.projectID == "" {
		return "", dserrors.ConfigError{
			Field:      "secretStore.projectID",
			Message:    fmt.Sprintf("secret %q is not a full resource name and no project is configured", name),
			Suggestion: "Use projects/<project>/secrets/<name>/versions/<version> or set GOOGLE_CLOUD_PROJECT",
		}
	}

	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name), nil
}

func gcpProjectFromEnv() string {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
