package secrets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/magnolia-blog/magnolia/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapFetcher map[string]string

func (m mapFetcher) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveSource(t *testing.T) {
	tests := []struct {
		source secrets.SecretSource
		env    string
		want   secrets.SecretSource
	}{
		{secrets.SourceAuto, "development", secrets.SourceEnvironment},
		{secrets.SourceAuto, "", secrets.SourceEnvironment},
		{secrets.SourceAuto, "production", secrets.SourceVault},
		{secrets.SourceAuto, "staging", secrets.SourceVault},
		{secrets.SourceEnvironment, "production", secrets.SourceEnvironment},
		{secrets.SourceVault, "development", secrets.SourceVault},
	}
	for _, tt := range tests {
		t.Run(string(tt.source)+"/"+tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, secrets.ResolveSource(tt.source, tt.env))
		})
	}
}

func TestProvider_EnvironmentSource(t *testing.T) {
	t.Setenv("MAGNOLIA_TEST_SECRET", "s3cret")

	p, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:      secrets.SourceEnvironment,
		Environment: "development",
	}, zap.NewNop())
	require.NoError(t, err)

	v, err := p.GetSecret(context.Background(), "MAGNOLIA_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = p.GetSecret(context.Background(), "MAGNOLIA_TEST_MISSING")
	assert.Error(t, err)
}

func TestProvider_VaultRequiresName(t *testing.T) {
	_, err := secrets.NewProvider(&secrets.ProviderConfig{Source: secrets.SourceVault}, zap.NewNop())
	assert.Error(t, err)
}

func TestProvider_GetSecretOrEnv(t *testing.T) {
	p := secrets.NewProviderWithFetcher(secrets.SourceVault, mapFetcher{"github-token": "from-vault"}, zap.NewNop())
	ctx := context.Background()

	v, err := p.GetSecretOrEnv(ctx, "github-token", "MAGNOLIA_TEST_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", v)

	t.Setenv("MAGNOLIA_TEST_TOKEN", "from-env")
	v, err = p.GetSecretOrEnv(ctx, "github-token", "MAGNOLIA_TEST_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}
