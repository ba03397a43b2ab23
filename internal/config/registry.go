package config

import "sync"

// TenantRegistry is a thread-safe view over the tenants configuration,
// safe to hand to the engine while WatchTenants swaps the config underneath.
type TenantRegistry struct {
	mu  sync.RWMutex
	cfg *TenantsConfig
}

// NewTenantRegistry wraps an initial configuration.
func NewTenantRegistry(cfg *TenantsConfig) *TenantRegistry {
	return &TenantRegistry{cfg: cfg}
}

// Update replaces the current configuration.
func (r *TenantRegistry) Update(cfg *TenantsConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// Tenant returns the configuration for the tenant id, or nil when unknown.
func (r *TenantRegistry) Tenant(id string) *TenantConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return nil
	}
	return r.cfg.Tenant(id)
}
