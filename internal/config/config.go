package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Providers struct {
		GeocodeBaseURL  string `yaml:"geocode_base_url"`
		RoutingBaseURL  string `yaml:"routing_base_url"`
		SolarBaseURL    string `yaml:"solar_base_url"`
		APIKey          string `yaml:"api_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
	} `yaml:"providers"`

	Notify struct {
		WebhookURL     string  `yaml:"webhook_url"`
		TelegramToken  string  `yaml:"telegram_token"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		Burst          int     `yaml:"burst"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"notify"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	TenantsPath string `yaml:"tenants_path"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/apertura.db"
	}
	if cfg.TenantsPath == "" {
		cfg.TenantsPath = "configs/tenants.yaml"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ProviderTimeout() time.Duration {
	if c.Providers.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

func (c *Config) ProviderCacheTTL() time.Duration {
	return time.Duration(c.Providers.CacheTTLSeconds) * time.Second
}

func (c *Config) NotifyRate() float64 {
	if c.Notify.RatePerSecond <= 0 {
		return 20.0
	}
	return c.Notify.RatePerSecond
}

func (c *Config) NotifyBurst() int {
	if c.Notify.Burst <= 0 {
		return 30
	}
	return c.Notify.Burst
}
