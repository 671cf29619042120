package contents

import (
	"context"
	"fmt"
	"time"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
)

// NewStoreFromConfig creates a ContentStore based on the store config type.
// token supplies the credential of the github and proxy stores.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, token TokenSource, timeout time.Duration) (gallery.ContentStore, error) {
	switch cfg.Type {
	case "github":
		if cfg.Repo == "" {
			return nil, fmt.Errorf("github store requires repo to be set")
		}
		return NewGitHubStore(cfg.APIURL, cfg.Repo, cfg.Branch, token, timeout), nil
	case "proxy":
		if cfg.ProxyURL == "" {
			return nil, fmt.Errorf("proxy store requires proxy_url to be set")
		}
		return NewProxyStore(cfg.ProxyURL, cfg.Branch, token, timeout), nil
	case "memory":
		return NewMemoryStore(cfg.Name, nil), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 store requires s3_bucket to be set")
		}
		client, err := NewS3Client(ctx, S3Options{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Timeout:         timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 client: %w", err)
		}
		return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// NeedsToken reports whether stores of type storeType authenticate with a
// session-managed token.
func NeedsToken(storeType string) bool {
	return storeType == "github" || storeType == "proxy"
}
