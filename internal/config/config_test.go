package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "RESOLVE_METHOD", "extractor")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheFile {
		t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, CacheFile)
	}
	if cfg.Storage.Backend != StorageNone {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageNone)
	}
	if len(cfg.Embed.UserAgents) == 0 {
		t.Error("Embed.UserAgents should default to the known embed clients")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
resolve:
  method: extractor
cache:
  backend: sqlite
  sqlite_path: /tmp/links.db
app:
  name: FixerUpper
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheSQLite {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
	if cfg.App.Name != "FixerUpper" {
		t.Errorf("App.Name = %q, want FixerUpper", cfg.App.Name)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\nresolve:\n  method: extractor\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	setEnv(t, "SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad resolve method",
			mutate:  func(c *Config) { c.Resolve.Method = "carrier-pigeon" },
			wantErr: "resolve method",
		},
		{
			name:    "api method without credentials",
			mutate:  func(c *Config) { c.Resolve.Method = MethodAPI; c.Twitter.APIKey = "" },
			wantErr: "TWITTER_API_KEY",
		},
		{
			name:    "mongo backend without uri",
			mutate:  func(c *Config) { c.Cache.Backend = CacheMongo },
			wantErr: "CACHE_MONGO_URI",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "cache backend",
		},
		{
			name:    "s3 backend without bucket",
			mutate:  func(c *Config) { c.Storage.Backend = StorageS3 },
			wantErr: "S3_ENDPOINT",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "tape" },
			wantErr: "storage backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Resolve: ResolveConfig{Method: MethodExtractor},
				Cache:   CacheConfig{Backend: CacheFile},
				Storage: StorageConfig{Backend: StorageNone},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	sc := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := sc.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Address() = %q, want 127.0.0.1:8080", got)
	}
}
