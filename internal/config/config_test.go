package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.App.Port)
	assert.Equal(t, "session_id", cfg.Auth.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTLDuration())
	assert.Equal(t, 10, cfg.Site.PageSize)
	assert.Equal(t, "local", cfg.Site.OutputMode)
	assert.Equal(t, "$web", cfg.Site.AzureContainer)
	assert.Equal(t, "deploy.yml", cfg.GitHub.Workflow)
	assert.Equal(t, "0 0 * * * *", cfg.Jobs.SessionCleanupCron)
	assert.False(t, cfg.GitHub.Configured())
}

func TestLoad_EnvironmentAliases(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_USERNAME", "editor")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("PERSONAL_ACCESS_TOKEN", "ghp_x")
	t.Setenv("REPO_OWNER", "magnolia-blog")
	t.Setenv("REPO_NAME", "site")
	t.Setenv("SITE_PAGESIZE", "5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "editor", cfg.Auth.AdminUsername)
	assert.Equal(t, "hunter2", cfg.Auth.AdminPassword)
	assert.Equal(t, 5, cfg.Site.PageSize)
	assert.True(t, cfg.GitHub.Configured())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "magnolia.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"site":{"title":"Field Notes","relatedLimit":2}}`), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Field Notes", cfg.Site.Title)
	assert.Equal(t, 2, cfg.Site.RelatedLimit)

	_, err = config.LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Site.OutputMode = "ftp"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adminUsername")
	assert.Contains(t, err.Error(), "adminPassword")
	assert.Contains(t, err.Error(), "pageSize")
	assert.Contains(t, err.Error(), "outputMode")
}

func TestResolveSecrets_DisabledKeepsEnvironment(t *testing.T) {
	t.Setenv("USE_AZURE_KEY_VAULT", "false")
	cfg := &config.Config{}
	cfg.Auth.AdminPassword = "from-env"

	require.NoError(t, config.ResolveSecrets(context.Background(), cfg, zap.NewNop()))
	assert.Equal(t, "from-env", cfg.Auth.AdminPassword)
}

func TestResolveSecrets_VaultNameRequired(t *testing.T) {
	t.Setenv("USE_AZURE_KEY_VAULT", "true")
	cfg := &config.Config{}
	cfg.App.Environment = "production"

	assert.Error(t, config.ResolveSecrets(context.Background(), cfg, zap.NewNop()))
}
