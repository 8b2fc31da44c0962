package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/magnolia-blog/magnolia/internal/config"
	"go.uber.org/zap"
)

// Publisher is a target for generated site files. Paths are slash
// separated and relative to the site root.
type Publisher interface {
	Put(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]string, error)
}

// NewPublisher creates the publisher selected by site.outputMode
func NewPublisher(cfg *config.SiteConfig, logger *zap.Logger) (Publisher, error) {
	switch cfg.OutputMode {
	case "local", "":
		return NewLocalStorage(cfg.OutputDir)
	case "azure":
		if cfg.AzureConnectionString == "" {
			return nil, fmt.Errorf("azure connection string required for azure output mode")
		}
		return NewAzureBlobStorage(context.Background(), cfg.AzureConnectionString, cfg.AzureContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported output mode: %s", cfg.OutputMode)
	}
}

// cleanPath validates a publisher path and returns its canonical form
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("invalid path %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid path %q", p)
	}
	return cleaned, nil
}
