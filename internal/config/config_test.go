package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alertd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Sampler.Enabled || cfg.Sampler.MinInterval != 3*time.Second || cfg.Sampler.MaxInterval != 6*time.Second {
		t.Fatalf("unexpected sampler defaults: %+v", cfg.Sampler)
	}
	if cfg.Export.Enabled {
		t.Fatalf("export must default to disabled")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
log_level: debug
server:
  addr: ":9090"
storage:
  driver: sqlite
  dsn: /tmp/alerts.db
sampler:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Server.Addr != ":9090" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "/tmp/alerts.db" {
		t.Fatalf("storage not applied: %+v", cfg.Storage)
	}
	if cfg.Sampler.Enabled {
		t.Fatalf("sampler.enabled override lost")
	}
	// Untouched sections keep their defaults.
	if cfg.Auth.Issuer != "alertd" || cfg.Hub.SendBuffer != 64 {
		t.Fatalf("defaults lost for untouched sections: %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
`)
	t.Setenv("ALERTD_ADDR", ":7070")
	t.Setenv("ALERTD_JWT_SECRET", "env-secret")
	t.Setenv("ALERTD_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("env addr not applied: %s", cfg.Server.Addr)
	}
	if cfg.Auth.Secret != "env-secret" || cfg.LogLevel != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	path := writeConfigFile(t, "   \n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty config file")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"inverted sampler interval", func(c *Config) {
			c.Sampler.MinInterval = 10 * time.Second
			c.Sampler.MaxInterval = 5 * time.Second
		}, true},
		{"unknown storage driver", func(c *Config) { c.Storage.Driver = "etcd" }, true},
		{"postgres driver accepted", func(c *Config) { c.Storage.Driver = "postgres" }, false},
		{"export enabled without brokers", func(c *Config) { c.Export.Enabled = true }, true},
		{"export enabled with brokers and topic", func(c *Config) {
			c.Export.Enabled = true
			c.Export.Brokers = []string{"localhost:9092"}
			c.Export.Topic = "alerts"
		}, false},
		{"empty secret", func(c *Config) { c.Auth.Secret = "" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
