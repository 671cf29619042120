package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_WriteThenRead(t *testing.T) {
	original := NewConfig("/home/user/.local/share/gallery", StoreConfig{
		Type:   "github",
		Name:   "photos",
		Repo:   "octo/photos",
		Branch: "main",
	})
	original.Gallery.PageSize = 24
	original.Gallery.RequestTimeout = 5 * time.Second
	original.Session.LoginURL = "https://proxy.example.com/login"

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Store.Repo != "octo/photos" {
		t.Errorf("Store.Repo = %q, want %q", got.Store.Repo, "octo/photos")
	}
	if got.Store.Branch != "main" {
		t.Errorf("Store.Branch = %q, want %q", got.Store.Branch, "main")
	}
	if got.Gallery.PageSize != 24 {
		t.Errorf("Gallery.PageSize = %d, want 24", got.Gallery.PageSize)
	}
	if got.Gallery.RequestTimeout != 5*time.Second {
		t.Errorf("Gallery.RequestTimeout = %v, want 5s", got.Gallery.RequestTimeout)
	}
	if got.Session.LoginURL != original.Session.LoginURL {
		t.Errorf("Session.LoginURL = %q, want %q", got.Session.LoginURL, original.Session.LoginURL)
	}
	if got.Encryption.IdentityPath != original.Encryption.IdentityPath {
		t.Errorf("Encryption.IdentityPath = %q, want %q", got.Encryption.IdentityPath, original.Encryption.IdentityPath)
	}
}

func TestManager_Read_AppliesDefaults(t *testing.T) {
	input := `
base_dir = "/data/gallery"

[store]
type = "memory"
`
	got, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.LogDir != "/data/gallery/log" {
		t.Errorf("LogDir = %q, want %q", got.LogDir, "/data/gallery/log")
	}
	if got.Gallery.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", got.Gallery.PageSize, DefaultPageSize)
	}
	if got.Gallery.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", got.Gallery.MaxConcurrency, DefaultMaxConcurrency)
	}
	if got.Gallery.OperationTimeout != DefaultOperationTimeout {
		t.Errorf("OperationTimeout = %v, want %v", got.Gallery.OperationTimeout, DefaultOperationTimeout)
	}
	if got.Database.Type != "sqlite" || got.Database.DataDir != "/data/gallery/db" {
		t.Errorf("Database = %+v, want sqlite at /data/gallery/db", got.Database)
	}
	if got.Encryption.IdentityPath != "/data/gallery/keys/gallery.key" {
		t.Errorf("IdentityPath = %q", got.Encryption.IdentityPath)
	}
}

func TestManager_Read_Durations(t *testing.T) {
	input := `
base_dir = "/data/gallery"

[store]
type = "memory"

[gallery]
request_timeout = "45s"
operation_timeout = "2m"
ignore = ["*_thumb.jpg", "raw/*"]
`
	got, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Gallery.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", got.Gallery.RequestTimeout)
	}
	if got.Gallery.OperationTimeout != 2*time.Minute {
		t.Errorf("OperationTimeout = %v, want 2m", got.Gallery.OperationTimeout)
	}
	if len(got.Gallery.Ignore) != 2 || got.Gallery.Ignore[1] != "raw/*" {
		t.Errorf("Ignore = %v", got.Gallery.Ignore)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "github", store: StoreConfig{Type: "github", Repo: "octo/photos"}},
		{name: "github without repo", store: StoreConfig{Type: "github"}, wantErr: true},
		{name: "github repo without owner", store: StoreConfig{Type: "github", Repo: "photos"}, wantErr: true},
		{name: "github repo with extra segment", store: StoreConfig{Type: "github", Repo: "a/b/c"}, wantErr: true},
		{name: "proxy", store: StoreConfig{Type: "proxy", ProxyURL: "https://proxy.example.com/api"}},
		{name: "proxy without url", store: StoreConfig{Type: "proxy"}, wantErr: true},
		{name: "proxy with bad url", store: StoreConfig{Type: "proxy", ProxyURL: "not a url"}, wantErr: true},
		{name: "filesystem", store: StoreConfig{Type: "filesystem", FSRoot: "/srv/gallery"}},
		{name: "filesystem without root", store: StoreConfig{Type: "filesystem"}, wantErr: true},
		{name: "s3", store: StoreConfig{Type: "s3", S3Bucket: "photos", S3Region: "eu-west-1"}},
		{name: "s3 without region", store: StoreConfig{Type: "s3", S3Bucket: "photos"}, wantErr: true},
		{name: "memory", store: StoreConfig{Type: "memory"}},
		{name: "unknown type", store: StoreConfig{Type: "ftp"}, wantErr: true},
		{name: "missing type", store: StoreConfig{}, wantErr: true},
		{
			name:    "page size zero",
			store:   StoreConfig{Type: "memory"},
			mutate:  func(c *Config) { c.Gallery.PageSize = 0 },
			wantErr: true,
		},
		{
			name:    "bad login url",
			store:   StoreConfig{Type: "memory"},
			mutate:  func(c *Config) { c.Session.LoginURL = "::" },
			wantErr: true,
		},
		{
			name:   "test encryption needs no identity",
			store:  StoreConfig{Type: "memory"},
			mutate: func(c *Config) { c.Encryption = EncryptionConfig{Type: "test"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/gallery", tt.store)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/gallery", StoreConfig{Type: "memory"})

	if cfg.BaseDir != "/data/gallery" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/gallery")
	}
	if cfg.LogDir != "/data/gallery/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/gallery/log")
	}
	if cfg.Encryption.IdentityPath != "/data/gallery/keys/gallery.key" {
		t.Errorf("Encryption.IdentityPath = %q, want %q", cfg.Encryption.IdentityPath, "/data/gallery/keys/gallery.key")
	}
	if cfg.Gallery.PageSize != 15 {
		t.Errorf("Gallery.PageSize = %d, want 15", cfg.Gallery.PageSize)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gallery.toml")
		cfg := NewConfig(dir, StoreConfig{Type: "memory"})

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gallery.toml")
		cfg := NewConfig(dir, StoreConfig{Type: "memory"})

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gallery.toml")
		cfg := NewConfig(dir, StoreConfig{Type: "github"})

		if err := Init(path, cfg); err == nil {
			t.Fatal("Init() expected validation error")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("config file should not exist after failed Init")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gallery.toml")
		cfg := NewConfig(dir, StoreConfig{Type: "filesystem", FSRoot: filepath.Join(dir, "store")})
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Store.FSRoot != cfg.Store.FSRoot {
			t.Errorf("Store.FSRoot = %q, want %q", got.Store.FSRoot, cfg.Store.FSRoot)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", got.Database.Type)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/gallery.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
