// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type TenantConfig struct {
	BaseDomain    string        `yaml:"base_domain" env:"BASE_DOMAIN"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	LookupTimeout time.Duration `yaml:"lookup_timeout" env:"LOOKUP_TIMEOUT"`
	ExemptPaths   []string      `yaml:"exempt_paths" env:"EXEMPT_PATHS" envSeparator:","`
}

type Config struct {
	Server ServerConfig `yaml:"server" envPrefix:"SERVER_"`
	Tenant TenantConfig `yaml:"tenant" envPrefix:"TENANT_"`

	RabbitMQ struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"rabbitmq" envPrefix:"RABBITMQ_"`

	Database struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"database" envPrefix:"DATABASE_"`

	Redis struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"redis" envPrefix:"REDIS_"`

	Workers int `yaml:"workers" env:"WORKERS"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level" env:"LEVEL"`
		Format string `yaml:"format" env:"FORMAT"`
	} `yaml:"log" envPrefix:"LOG_"`
}

// Default returns the configuration used for any value the file and the
// environment leave unset.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Tenant.BaseDomain = "azima.store"
	cfg.Tenant.CacheTTL = 300 * time.Second
	cfg.Tenant.LookupTimeout = 2 * time.Second
	cfg.Tenant.ExemptPaths = []string{"/health", "/healthz", "/ready", "/metrics", "/static", "/_next", "/swagger"}
	cfg.Workers = 4
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// LoadConfig layers the YAML file at path, then a .env file, then process
// environment variables over Default. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// the .env file is optional
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Tenant.BaseDomain == "" {
		errs = append(errs, errors.New("tenant.base_domain is required"))
	}
	if c.Tenant.CacheTTL <= 0 {
		errs = append(errs, errors.New("tenant.cache_ttl must be positive"))
	}
	if c.Tenant.LookupTimeout <= 0 {
		errs = append(errs, errors.New("tenant.lookup_timeout must be positive"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
