package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/magnolia-blog/magnolia/internal/secrets"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	KV        KVConfig
	Auth      AuthConfig
	Site      SiteConfig
	GitHub    GitHubConfig
	Jobs      JobsConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

// KVConfig configures the embedded badger store
type KVConfig struct {
	// Path is the directory holding the badger files
	Path string
	// InMemory keeps all data in memory; nothing is persisted
	InMemory bool
	// SyncWrites fsyncs every write
	SyncWrites bool
	// GCInterval is the value-log GC period in seconds (0 disables GC)
	GCInterval int
	// GCDiscardRatio is passed to badger's RunValueLogGC
	GCDiscardRatio float64
}

type AuthConfig struct {
	AdminUsername string
	AdminPassword string
	// SessionTTL is the session lifetime in seconds
	SessionTTL   int
	CookieName   string
	CookieSecure bool
	BcryptCost   int
}

// SiteConfig controls static site generation and publishing
type SiteConfig struct {
	Title       string
	Description string
	Language    string
	// BaseURL is the absolute site URL; sitemap.xml is only written when set
	BaseURL string
	// BasePath prefixes every generated link, e.g. "/blog"
	BasePath string
	// OutputMode is "local" or "azure"
	OutputMode            string
	OutputDir             string
	AzureConnectionString string
	AzureContainer        string
	PageSize              int
	RelatedLimit          int
	DefaultCategory       string
	// AutoBuild rebuilds the site after every article mutation
	AutoBuild bool
}

type GitHubConfig struct {
	Token    string
	Owner    string
	Repo     string
	Workflow string
	Ref      string
	APIURL   string
}

type JobsConfig struct {
	SessionCleanupCron string
	// SiteBuildCron is optional; empty disables the scheduled build
	SiteBuildCron string
	// BuildTimeout in seconds
	BuildTimeout int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableMetrics  bool
}

// CORSConfig holds CORS configuration for the admin API.
// The public article API always allows any origin.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	// FrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN, or empty to disable)
	FrameOptions       string
	ContentTypeNosniff bool
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the per-IP limit for all routes
	RequestsPerMinute int
	// LoginRequestsPerMinute is the per-IP limit for POST /login
	LoginRequestsPerMinute int
	WhitelistIPs           []string
	WhitelistPaths         []string
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// SessionTTLDuration returns the session lifetime as duration
func (a *AuthConfig) SessionTTLDuration() time.Duration {
	return time.Duration(a.SessionTTL) * time.Second
}

func (k *KVConfig) GCIntervalDuration() time.Duration {
	return time.Duration(k.GCInterval) * time.Second
}

func (j *JobsConfig) BuildTimeoutDuration() time.Duration {
	return time.Duration(j.BuildTimeout) * time.Second
}

// Configured reports whether workflow dispatch can be attempted
func (g *GitHubConfig) Configured() bool {
	return g.Token != "" && g.Owner != "" && g.Repo != ""
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.AdminUsername) == "" {
		errs = append(errs, errors.New("auth.adminUsername (ADMIN_USERNAME) is required"))
	}
	if c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("auth.adminPassword (ADMIN_PASSWORD) is required"))
	}
	if c.Site.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("site.pageSize must be positive, got %d", c.Site.PageSize))
	}
	if c.Site.OutputMode != "local" && c.Site.OutputMode != "azure" {
		errs = append(errs, fmt.Errorf("site.outputMode must be local or azure, got %q", c.Site.OutputMode))
	}
	return errors.Join(errs...)
}

// Load loads configuration from file and environment variables.
// Use LoadWithSecrets for Key Vault resolution.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

// LoadFile loads configuration from an explicit file path, as used by the CLI
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Plain environment names used by existing deployments
	if s := v.GetString("ADMIN_USERNAME"); s != "" {
		cfg.Auth.AdminUsername = s
	}
	if s := v.GetString("ADMIN_PASSWORD"); s != "" {
		cfg.Auth.AdminPassword = s
	}
	if s := v.GetString("PERSONAL_ACCESS_TOKEN"); s != "" && cfg.GitHub.Token == "" {
		cfg.GitHub.Token = s
	}
	if s := v.GetString("REPO_OWNER"); s != "" && cfg.GitHub.Owner == "" {
		cfg.GitHub.Owner = s
	}
	if s := v.GetString("REPO_NAME"); s != "" && cfg.GitHub.Repo == "" {
		cfg.GitHub.Repo = s
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
//
// Key Vault is used when USE_AZURE_KEY_VAULT is "true" and the environment is
// "staging" or "production". Otherwise secrets come from environment variables.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := ResolveSecrets(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveSecrets overlays vault secrets onto cfg when Key Vault is enabled
func ResolveSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	logger.Info("Loading secrets from Azure Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	if password, err := provider.GetSecretOrEnv(ctx, "admin-password", "ADMIN_PASSWORD"); err == nil && password != "" {
		cfg.Auth.AdminPassword = password
	}
	if token, err := provider.GetSecretOrEnv(ctx, "github-token", "PERSONAL_ACCESS_TOKEN"); err == nil && token != "" {
		cfg.GitHub.Token = token
	}
	if connStr, err := provider.GetSecretOrEnv(ctx, "site-storage-connection-string", "SITE_AZURECONNECTIONSTRING"); err == nil && connStr != "" {
		cfg.Site.AzureConnectionString = connStr
	}

	logger.Info("Secrets loaded from vault successfully")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Magnolia")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8000)

	v.SetDefault("kv.path", "./data/magnolia")
	v.SetDefault("kv.inMemory", false)
	v.SetDefault("kv.syncWrites", true)
	v.SetDefault("kv.gcInterval", 600)
	v.SetDefault("kv.gcDiscardRatio", 0.5)

	v.SetDefault("auth.adminUsername", "")
	v.SetDefault("auth.adminPassword", "")
	v.SetDefault("auth.sessionTTL", 86400) // 24 hours
	v.SetDefault("auth.cookieName", "session_id")
	v.SetDefault("auth.cookieSecure", false)
	v.SetDefault("auth.bcryptCost", 10)

	v.SetDefault("site.title", "Magnolia")
	v.SetDefault("site.description", "")
	v.SetDefault("site.language", "en")
	v.SetDefault("site.baseURL", "")
	v.SetDefault("site.basePath", "")
	v.SetDefault("site.outputMode", "local")
	v.SetDefault("site.outputDir", "./public")
	v.SetDefault("site.azureConnectionString", "")
	v.SetDefault("site.azureContainer", "$web")
	v.SetDefault("site.pageSize", 10)
	v.SetDefault("site.relatedLimit", 4)
	v.SetDefault("site.defaultCategory", "Uncategorized")
	v.SetDefault("site.autoBuild", false)

	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.workflow", "deploy.yml")
	v.SetDefault("github.ref", "main")
	v.SetDefault("github.apiURL", "https://api.github.com")

	v.SetDefault("jobs.sessionCleanupCron", "0 0 * * * *") // hourly
	v.SetDefault("jobs.siteBuildCron", "")
	v.SetDefault("jobs.buildTimeout", 300)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableMetrics", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 120)
	v.SetDefault("rateLimit.loginRequestsPerMinute", 10)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/ready"})
}
