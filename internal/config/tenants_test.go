package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantsYAML = `
tenants:
  - id: studio-1
    name: Harbourline Studios
    specialized_scheduling: true
    travel_buffer_minutes: 20
    default_time_zone: Australia/Sydney
    days:
      monday:
        open: true
      friday:
        open: true
        dusk_cap: 3
      saturday:
        open: true
        dusk_cap: 99
  - id: studio-2
    name: ${PLAIN_TENANT_NAME}
`

func writeTenantsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTenantsConfig(t *testing.T) {
	t.Setenv("PLAIN_TENANT_NAME", "Plainfield Photos")
	cfg, err := LoadTenantsConfig(writeTenantsFile(t, tenantsYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Tenants, 2)

	studio := cfg.Tenant("studio-1")
	require.NotNil(t, studio)
	assert.True(t, studio.SpecializedScheduling)
	assert.Equal(t, 20*time.Minute, studio.TravelBuffer())

	// Environment variables expand inside the file.
	assert.Equal(t, "Plainfield Photos", cfg.Tenant("studio-2").Name)

	assert.Nil(t, cfg.Tenant("studio-404"))
}

func TestLoadTenantsConfig_MissingID(t *testing.T) {
	_, err := LoadTenantsConfig(writeTenantsFile(t, "tenants:\n  - name: anonymous\n"))
	assert.Error(t, err)
}

func TestTenantConfig_Day(t *testing.T) {
	cfg, err := LoadTenantsConfig(writeTenantsFile(t, tenantsYAML))
	require.NoError(t, err)
	studio := cfg.Tenant("studio-1")

	monday := studio.Day(time.Monday)
	assert.True(t, monday.Open)
	assert.Nil(t, monday.DuskCap)

	friday := studio.Day(time.Friday)
	require.NotNil(t, friday.DuskCap)
	assert.Equal(t, 3, *friday.DuskCap)

	saturday := studio.Day(time.Saturday)
	require.NotNil(t, saturday.DuskCap)
	assert.Equal(t, UncappedSentinel, *saturday.DuskCap)

	// Unconfigured weekdays read as closed.
	assert.False(t, studio.Day(time.Sunday).Open)

	bare := cfg.Tenant("studio-2")
	assert.False(t, bare.Day(time.Monday).Open)
}

func TestTenantConfig_ArrivalDefaults(t *testing.T) {
	tenant := TenantConfig{}
	assert.Equal(t, 15*time.Minute, tenant.TravelBuffer())
	assert.Equal(t, 15*time.Minute, tenant.SunriseArrival())
	assert.Equal(t, 25*time.Minute, tenant.DuskArrival())

	tenant.DuskArrivalMinutes = 40
	assert.Equal(t, 40*time.Minute, tenant.DuskArrival())
}

func TestTenantRegistry(t *testing.T) {
	registry := NewTenantRegistry(&TenantsConfig{Tenants: []TenantConfig{{ID: "a"}}})
	require.NotNil(t, registry.Tenant("a"))
	assert.Nil(t, registry.Tenant("b"))

	registry.Update(&TenantsConfig{Tenants: []TenantConfig{{ID: "b"}}})
	assert.Nil(t, registry.Tenant("a"))
	require.NotNil(t, registry.Tenant("b"))
}
