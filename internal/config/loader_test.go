package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, 1440, cfg.Auth.SessionTTLMinutes)
	assert.True(t, cfg.Policy.AccountantManageVendors)
	assert.False(t, cfg.Policy.AccountantManageUsers)
	assert.Equal(t, "log", cfg.Audit.Sink)
	assert.Equal(t, 1024, cfg.Audit.Buffer)
	assert.False(t, cfg.Audit.LogDenied)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("BILLING_PORT", "9090")
	t.Setenv("BILLING_LOG_LEVEL", "debug")
	t.Setenv("BILLING_AUDIT_SINK", "cache")
	t.Setenv("BILLING_POLICY_ACCOUNTANT_MANAGE_USERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "cache", cfg.Audit.Sink)
	assert.True(t, cfg.Policy.AccountantManageUsers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("BILLING_AUDIT_SINK", "syslog")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := &Config{
		Port: 8080,
		Auth: AuthConfig{SessionTTLMinutes: 60},
		Audit: AuditConfig{
			Sink:   "log",
			Buffer: 16,
		},
	}
	assert.NoError(t, validateConfig(valid))

	badPort := *valid
	badPort.Port = 0
	assert.Error(t, validateConfig(&badPort))

	badTTL := *valid
	badTTL.Auth.SessionTTLMinutes = 0
	assert.Error(t, validateConfig(&badTTL))

	badBuffer := *valid
	badBuffer.Audit.Buffer = 0
	assert.Error(t, validateConfig(&badBuffer))

	badOverride := *valid
	badOverride.Policy.Overrides = map[string]string{"admin.vendor.delete": "maybe"}
	assert.Error(t, validateConfig(&badOverride))
}
