package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Runtime threshold limits are not here:
// they live in the store and are reloaded by the sampler every cycle.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Server   ServerConfig  `yaml:"server"`
	Auth     AuthConfig    `yaml:"auth"`
	Storage  StorageConfig `yaml:"storage"`
	Sampler  SamplerConfig `yaml:"sampler"`
	Hub      HubConfig     `yaml:"hub"`
	Export   ExportConfig  `yaml:"export"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type AuthConfig struct {
	Secret       string        `yaml:"secret"`
	Issuer       string        `yaml:"issuer"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	DemoUser     string        `yaml:"demo_user"`
	DemoPassword string        `yaml:"demo_password"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SamplerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

type HubConfig struct {
	SendBuffer int `yaml:"send_buffer"`
}

type ExportConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	QueueSize    int           `yaml:"queue_size"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Auth: AuthConfig{
			Secret:       "change-me",
			Issuer:       "alertd",
			TokenTTL:     8 * time.Hour,
			DemoUser:     "demo",
			DemoPassword: "Password123!",
		},
		Storage: StorageConfig{
			Driver: "memory",
			DSN:    "",
		},
		Sampler: SamplerConfig{
			Enabled:     true,
			MinInterval: 3 * time.Second,
			MaxInterval: 6 * time.Second,
		},
		Hub: HubConfig{SendBuffer: 64},
		Export: ExportConfig{
			Enabled:      false,
			QueueSize:    1024,
			BatchSize:    100,
			BatchTimeout: 500 * time.Millisecond,
		},
	}
}

// Load reads a YAML config file on top of defaults, applies env overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if len(strings.TrimSpace(string(content))) == 0 {
			return nil, errors.New("config file is empty")
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ALERTD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ALERTD_JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("ALERTD_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("ALERTD_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("ALERTD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Sampler.MinInterval <= 0 {
		cfg.Sampler.MinInterval = 3 * time.Second
	}
	if cfg.Sampler.MaxInterval <= 0 {
		cfg.Sampler.MaxInterval = 6 * time.Second
	}
	if cfg.Hub.SendBuffer <= 0 {
		cfg.Hub.SendBuffer = 64
	}
	if cfg.Export.QueueSize <= 0 {
		cfg.Export.QueueSize = 1024
	}
	if cfg.Export.BatchSize <= 0 {
		cfg.Export.BatchSize = 100
	}
	if cfg.Export.BatchTimeout <= 0 {
		cfg.Export.BatchTimeout = 500 * time.Millisecond
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "alertd"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 8 * time.Hour
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
}

// Validate checks cross-field constraints.
func Validate(cfg *Config) error {
	if cfg.Sampler.MaxInterval < cfg.Sampler.MinInterval {
		return fmt.Errorf("sampler.max_interval %s is below sampler.min_interval %s",
			cfg.Sampler.MaxInterval, cfg.Sampler.MinInterval)
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Export.Enabled {
		if len(cfg.Export.Brokers) == 0 || cfg.Export.Topic == "" {
			return errors.New("export requires brokers and topic when enabled")
		}
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret must not be empty")
	}
	return nil
}
