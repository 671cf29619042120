package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPageSize         = 15
	DefaultMaxConcurrency   = 8
	DefaultRequestTimeout   = 30 * time.Second
	DefaultOperationTimeout = 10 * time.Minute
)

// Config represents the main configuration for gallery.
type Config struct {
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir" validate:"required"`
	Store      StoreConfig      `toml:"store"`
	Gallery    GalleryConfig    `toml:"gallery"`
	Session    SessionConfig    `toml:"session"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
}

// StoreConfig represents configuration for the content store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type" validate:"required,oneof=github proxy memory filesystem s3"`
	Name string `toml:"name"`

	// Branch is used by the github and proxy stores; empty means the
	// repository default branch.
	Branch string `toml:"branch,omitempty"`

	// GitHub-specific fields (only used when Type == "github")
	Repo   string `toml:"repo,omitempty" validate:"required_if=Type github"`
	APIURL string `toml:"api_url,omitempty" validate:"omitempty,url"`

	// Proxy-specific fields (only used when Type == "proxy")
	ProxyURL string `toml:"proxy_url,omitempty" validate:"required_if=Type proxy"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty" validate:"required_if=Type filesystem"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty" validate:"required_if=Type s3"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// GalleryConfig holds browsing and request settings.
type GalleryConfig struct {
	PageSize         int           `toml:"page_size" validate:"gte=1,lte=100"`
	MaxConcurrency   int           `toml:"max_concurrency" validate:"gte=1,lte=64"`
	RequestTimeout   time.Duration `toml:"request_timeout" validate:"gt=0"`
	OperationTimeout time.Duration `toml:"operation_timeout" validate:"gt=0"`

	// Ignore holds patterns skipped when a directory is uploaded, on top of
	// each directory's .galleryignore.
	Ignore []string `toml:"ignore,omitempty"`
}

// SessionConfig holds settings for the stored credential.
type SessionConfig struct {
	// LoginURL is the proxy login endpoint that exchanges a user name and
	// password for a session token.
	LoginURL string `toml:"login_url,omitempty" validate:"omitempty,url"`
}

// EncryptionConfig holds the age identity used to seal the stored credential.
type EncryptionConfig struct {
	Type         string `toml:"type" validate:"omitempty,oneof=age test"` // "age" (default) or "test"
	IdentityPath string `toml:"identity_path" validate:"required_unless=Type test"`
}

// DatabaseConfig represents configuration for the credential and operation database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// NewConfig creates a new Config rooted at baseDir with defaults and the
// given store.
func NewConfig(baseDir string, store StoreConfig) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store:   store,
		Gallery: GalleryConfig{
			PageSize:         DefaultPageSize,
			MaxConcurrency:   DefaultMaxConcurrency,
			RequestTimeout:   DefaultRequestTimeout,
			OperationTimeout: DefaultOperationTimeout,
		},
		Encryption: EncryptionConfig{
			Type:         "age",
			IdentityPath: filepath.Join(baseDir, "keys", "gallery.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// applyDefaults fills zero-valued settings, deriving paths from BaseDir.
func (c *Config) applyDefaults() {
	if c.BaseDir != "" {
		if c.LogDir == "" {
			c.LogDir = filepath.Join(c.BaseDir, "log")
		}
		if c.Encryption.IdentityPath == "" && c.Encryption.Type != "test" {
			c.Encryption.IdentityPath = filepath.Join(c.BaseDir, "keys", "gallery.key")
		}
		if c.Database.DataDir == "" && c.Database.Type != "memory" {
			c.Database.DataDir = filepath.Join(c.BaseDir, "db")
		}
	}
	if c.Gallery.PageSize == 0 {
		c.Gallery.PageSize = DefaultPageSize
	}
	if c.Gallery.MaxConcurrency == 0 {
		c.Gallery.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Gallery.RequestTimeout == 0 {
		c.Gallery.RequestTimeout = DefaultRequestTimeout
	}
	if c.Gallery.OperationTimeout == 0 {
		c.Gallery.OperationTimeout = DefaultOperationTimeout
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader, fills defaults and
// validates it.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The store section may carry S3 secrets.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init validates cfg and writes it as a new config file at path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
