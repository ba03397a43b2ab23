package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UncappedSentinel marks a slot cap that disables counting entirely.
const UncappedSentinel = 99

// DayConfig describes a tenant's operating rules for one weekday.
// Nil caps mean "not explicitly configured": the effective cap is then
// 1 when the day is open and 0 when it is closed.
type DayConfig struct {
	Open       bool `yaml:"open"`
	SunriseCap *int `yaml:"sunrise_cap,omitempty"`
	DuskCap    *int `yaml:"dusk_cap,omitempty"`
}

// TenantConfig holds per-tenant scheduling behaviour.
type TenantConfig struct {
	ID                     string `yaml:"id"`
	Name                   string `yaml:"name"`
	SpecializedScheduling  bool   `yaml:"specialized_scheduling"`
	TravelBufferMinutes    int    `yaml:"travel_buffer_minutes"`
	SunriseArrivalMinutes  int    `yaml:"sunrise_arrival_minutes"`
	DuskArrivalMinutes     int    `yaml:"dusk_arrival_minutes"`
	DefaultTimeZone        string `yaml:"default_time_zone"`
	NotifyWebhookOverride  string `yaml:"notify_webhook_override,omitempty"`
	// Days is keyed by lowercase weekday name ("monday".."sunday").
	Days map[string]DayConfig `yaml:"days"`
}

// TenantsConfig is the root configuration for tenants.yaml.
type TenantsConfig struct {
	Tenants []TenantConfig `yaml:"tenants"`
}

// LoadTenantsConfig loads per-tenant operating configuration from YAML.
func LoadTenantsConfig(path string) (*TenantsConfig, error) {
	if path == "" {
		path = "configs/tenants.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg TenantsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tenants config: %w", err)
	}

	for i := range cfg.Tenants {
		if cfg.Tenants[i].ID == "" {
			return nil, fmt.Errorf("tenant at index %d has no id", i)
		}
	}

	return &cfg, nil
}

// Tenant returns the configuration for the given tenant id, or nil.
func (c *TenantsConfig) Tenant(id string) *TenantConfig {
	for i := range c.Tenants {
		if c.Tenants[i].ID == id {
			return &c.Tenants[i]
		}
	}
	return nil
}

// Day returns the operating config for the given weekday.
// Unconfigured weekdays are treated as closed.
func (t *TenantConfig) Day(weekday time.Weekday) DayConfig {
	if t.Days == nil {
		return DayConfig{}
	}
	return t.Days[strings.ToLower(weekday.String())]
}

// TravelBuffer returns the safety margin added to computed drive time.
func (t *TenantConfig) TravelBuffer() time.Duration {
	if t.TravelBufferMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(t.TravelBufferMinutes) * time.Minute
}

// SunriseArrival is how long before sunrise the crew should arrive.
func (t *TenantConfig) SunriseArrival() time.Duration {
	if t.SunriseArrivalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(t.SunriseArrivalMinutes) * time.Minute
}

// DuskArrival is how long before sunset the crew should arrive.
func (t *TenantConfig) DuskArrival() time.Duration {
	if t.DuskArrivalMinutes <= 0 {
		return 25 * time.Minute
	}
	return time.Duration(t.DuskArrivalMinutes) * time.Minute
}

// WatchTenants reloads tenants.yaml on change and calls onUpdate with the
// latest config. It performs an initial load before entering the watch loop.
func WatchTenants(ctx context.Context, path string, interval time.Duration, onUpdate func(*TenantsConfig)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadTenantsConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadTenantsConfig(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
