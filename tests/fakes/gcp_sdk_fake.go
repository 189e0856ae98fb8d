package fakes

import (
	"context"
	"fmt"
	"hash/crc32"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient implements secretstore.GCPSecretManagerAPI.
type FakeGCPSecretManagerClient struct {
	// Versions maps version resource names (projects/X/secrets/Y/versions/Z) to data
	Versions map[string][]byte
	// Errors maps resource names to errors to return
	Errors map[string]error
	// CorruptChecksum makes responses carry a wrong CRC32C
	CorruptChecksum bool
	// Requests records every requested resource name
	Requests []string
}

// NewFakeGCPSecretManagerClient creates an empty fake client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretString registers value as both version 1 and latest
func (f *FakeGCPSecretManagerClient) AddSecretString(projectID, secretName, value string) {
	base := fmt.Sprintf("projects/%s/secrets/%s/versions/", projectID, secretName)
	f.Versions[base+"latest"] = []byte(value)
	f.Versions[base+"1"] = []byte(value)
}

// AddError configures the fake to fail for a resource name
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.Errors[resourceName] = err
}

// AccessSecretVersion returns the stored payload with its CRC32C checksum
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.Requests = append(f.Requests, req.GetName())

	if err, ok := f.Errors[req.GetName()]; ok {
		return nil, err
	}

	data, ok := f.Versions[req.GetName()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Secret version %s not found", req.GetName())
	}

	sum := int64(crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)))
	if f.CorruptChecksum {
		sum++
	}

	return &secretmanagerpb.AccessSecretVersionResponse{
		Name: req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{
			Data:       append([]byte(nil), data...),
			DataCrc32C: &sum,
		},
	}, nil
}
