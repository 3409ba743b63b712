package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with priority order:
// 1. Environment variables (BILLING_ prefix)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/billing-core/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BILLING")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file - continue with env vars and defaults.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "billing")
	v.SetDefault("database.name", "billing")

	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 300)

	v.SetDefault("auth.session_ttl_minutes", 1440) // 24 hours

	v.SetDefault("policy.accountant_manage_vendors", true)
	v.SetDefault("policy.accountant_manage_users", false)

	v.SetDefault("audit.sink", "log")
	v.SetDefault("audit.buffer", 1024)
	v.SetDefault("audit.log_denied", false)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Session-Token"})
	v.SetDefault("cors.max_age", 3600)
}

func validateConfig(c *Config) error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Auth.SessionTTLMinutes <= 0 {
		return fmt.Errorf("auth.session_ttl_minutes must be positive")
	}
	if c.Audit.Sink != "log" && c.Audit.Sink != "cache" {
		return fmt.Errorf("audit.sink must be \"log\" or \"cache\", got %q", c.Audit.Sink)
	}
	if c.Audit.Buffer <= 0 {
		return fmt.Errorf("audit.buffer must be positive")
	}
	for key, val := range c.Policy.Overrides {
		if val != "allow" && val != "deny" {
			return fmt.Errorf("policy override %q must be \"allow\" or \"deny\", got %q", key, val)
		}
	}
	return nil
}
