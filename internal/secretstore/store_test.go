package secretstore_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/secretstore"
	"github.com/systmms/zligate/internal/secure"
	"github.com/systmms/zligate/tests/fakes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func plaintext(t *testing.T, buf *secure.SecureBuffer) string {
	t.Helper()

	var out string
	require.NoError(t, buf.WithPlaintext(func(b []byte) error {
		out = string(b)
		return nil
	}))
	return out
}

func TestLoad(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeSecretStore(map[string]string{
		"provider": `{"client":"p"}`,
		"empty":    "",
	})
	store.Errors["broken"] = errors.New("connection refused")

	buf, err := secretstore.Load(context.Background(), store, "provider")
	require.NoError(t, err)
	assert.Equal(t, `{"client":"p"}`, plaintext(t, buf))

	_, err = secretstore.Load(context.Background(), store, "empty")
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrEmptySecret)
	assert.Equal(t, dserrors.KindSecretUnavailable, dserrors.KindOf(err))

	_, err = secretstore.Load(context.Background(), store, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `secret "missing" unavailable`)

	_, err = secretstore.Load(context.Background(), store, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoadCredentials(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeSecretStore(map[string]string{
		"provider": "provider-creds",
		"bzero":    "bzero-creds",
	})

	creds, err := secretstore.LoadCredentials(context.Background(), store, "provider", "bzero", nil)
	require.NoError(t, err)
	defer creds.Destroy()

	assert.Equal(t, []string{"provider", "bzero"}, store.Calls)
	assert.Equal(t, "provider-creds", plaintext(t, creds.Buffers()[0]))
	assert.Equal(t, "bzero-creds", plaintext(t, creds.Buffers()[1]))
}

func TestLoadCredentials_FailsFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		values    map[string]string
		wantCalls []string
		wantName  string
	}{
		{
			name:      "provider missing",
			values:    map[string]string{"bzero": "b"},
			wantCalls: []string{"provider"},
			wantName:  "provider",
		},
		{
			name:      "bzero empty",
			values:    map[string]string{"provider": "p", "bzero": ""},
			wantCalls: []string{"provider", "bzero"},
			wantName:  "bzero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := fakes.NewFakeSecretStore(tt.values)
			_, err := secretstore.LoadCredentials(context.Background(), store, "provider", "bzero", nil)
			require.Error(t, err)

			var secretErr dserrors.SecretError
			require.ErrorAs(t, err, &secretErr)
			assert.Equal(t, tt.wantName, secretErr.Name)
			assert.Equal(t, tt.wantCalls, store.Calls)
		})
	}
}

func TestCredentialsRedact(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeSecretStore(map[string]string{
		"provider": "provider-secret-value",
		"bzero":    "bzero-secret-value",
	})
	creds, err := secretstore.LoadCredentials(context.Background(), store, "provider", "bzero", nil)
	require.NoError(t, err)
	defer creds.Destroy()

	out := creds.Redact("bad creds: provider-secret-value / bzero-secret-value")
	assert.Equal(t, "bad creds: [REDACTED] / [REDACTED]", out)
}

func TestNew_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := secretstore.New(context.Background(), secretstore.Config{Type: "vault"})
	require.Error(t, err)
	assert.Equal(t, dserrors.KindConfig, dserrors.KindOf(err))
	assert.Contains(t, err.Error(), "gcp")
}

func TestNew_EnvStore(t *testing.T) {
	t.Parallel()

	store, err := secretstore.New(context.Background(), secretstore.Config{Type: secretstore.TypeEnv})
	require.NoError(t, err)
	assert.Equal(t, secretstore.TypeEnv, store.Type())
}

func TestTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"aws", "azure", "env", "gcp", "keyring"}, secretstore.Types())
	assert.True(t, secretstore.IsValidType("gcp"))
	assert.False(t, secretstore.IsValidType("vault"))
}

func TestGCPStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.AddSecretString("my-project", "bzero-creds", "bzero-json")
	client.AddSecretString("other-project", "provider-creds", "provider-json")
	client.AddError("projects/my-project/secrets/denied/versions/latest", status.Error(codes.PermissionDenied, "denied"))

	store := secretstore.NewGCPStoreWithClient(client, "my-project")
	assert.Equal(t, "gcp", store.Type())

	tests := []struct {
		name         string
		ref          string
		want         string
		wantResource string
	}{
		{
			name:         "bare name uses project and latest",
			ref:          "bzero-creds",
			want:         "bzero-json",
			wantResource: "projects/my-project/secrets/bzero-creds/versions/latest",
		},
		{
			name:         "full resource name without version",
			ref:          "projects/other-project/secrets/provider-creds",
			want:         "provider-json",
			wantResource: "projects/other-project/secrets/provider-creds/versions/latest",
		},
		{
			name:         "full resource name with version",
			ref:          "projects/other-project/secrets/provider-creds/versions/1",
			want:         "provider-json",
			wantResource: "projects/other-project/secrets/provider-creds/versions/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := store.Fetch(context.Background(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.Equal(t, tt.wantResource, client.Requests[len(client.Requests)-1])
		})
	}

	_, err := secretstore.Load(context.Background(), store, "denied")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secretAccessor")

	_, err = store.Fetch(context.Background(), "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGCPStore_RequiresProjectForShortNames(t *testing.T) {
	t.Parallel()

	store := secretstore.NewGCPStoreWithClient(fakes.NewFakeGCPSecretManagerClient(), "")
	_, err := store.Fetch(context.Background(), "bzero-creds")
	require.Error(t, err)
	assert.Equal(t, dserrors.KindConfig, dserrors.KindOf(err))
}

func TestGCPStore_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.AddSecretString("p", "s", "value")
	client.CorruptChecksum = true

	_, err := secretstore.NewGCPStoreWithClient(client, "p").Fetch(context.Background(), "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestAWSStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	client.AddSecretString("zli/provider", "provider-json")
	client.AddSecretBinary("zli/bzero", []byte("bzero-bytes"))
	client.AddError("zli/denied", errors.New("AccessDeniedException: not authorized"))

	store := secretstore.NewAWSStoreWithClient(client)
	assert.Equal(t, "aws", store.Type())

	data, err := store.Fetch(context.Background(), "zli/provider")
	require.NoError(t, err)
	assert.Equal(t, "provider-json", string(data))

	data, err = store.Fetch(context.Background(), "zli/bzero")
	require.NoError(t, err)
	assert.Equal(t, "bzero-bytes", string(data))

	_, err = secretstore.Load(context.Background(), store, "zli/denied")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secretsmanager:GetSecretValue")
}

func TestAzureStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient()
	client.AddSecretWithVersion("bzero-creds", "bzero-json", "abc123")

	store := secretstore.NewAzureStoreWithClient(client)
	assert.Equal(t, "azure", store.Type())

	data, err := store.Fetch(context.Background(), "bzero-creds")
	require.NoError(t, err)
	assert.Equal(t, "bzero-json", string(data))

	data, err = store.Fetch(context.Background(), "bzero-creds/abc123")
	require.NoError(t, err)
	assert.Equal(t, "bzero-json", string(data))

	_, err = store.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key vault has no secret missing")

	client.AddError("denied", fakes.AzureResponseError(http.StatusForbidden, "Forbidden"))
	_, err = secretstore.Load(context.Background(), store, "denied")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Grant the identity get permission")
}

func TestNewAzureStore_RequiresVaultURL(t *testing.T) {
	t.Parallel()

	_, err := secretstore.NewAzureStore("")
	require.Error(t, err)
	assert.Equal(t, dserrors.KindConfig, dserrors.KindOf(err))
}

// keyring.MockInit swaps a process-wide provider, so this test is not parallel.
func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, keyring.Set("zligate-test", "bzero-creds", "bzero-json"))

	store := secretstore.NewKeyringStore("zligate-test")
	assert.Equal(t, "keyring", store.Type())

	data, err := store.Fetch(context.Background(), "bzero-creds")
	require.NoError(t, err)
	assert.Equal(t, "bzero-json", string(data))

	_, err = store.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestEnvStore(t *testing.T) {
	t.Setenv("ZLIGATE_SECRET_BZERO_CREDS", "bzero-json")

	store := secretstore.NewEnvStore("")
	assert.Equal(t, "ZLIGATE_SECRET_BZERO_CREDS", store.Key("bzero-creds"))

	data, err := store.Fetch(context.Background(), "bzero-creds")
	require.NoError(t, err)
	assert.Equal(t, "bzero-json", string(data))

	_, err = store.Fetch(context.Background(), "provider-creds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZLIGATE_SECRET_PROVIDER_CREDS")
}
