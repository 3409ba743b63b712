package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Policy   PolicyConfig   `mapstructure:"policy" yaml:"policy"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	CORS     CORSConfig     `mapstructure:"cors" yaml:"cors"`
}

// DatabaseConfig points at the MySQL-compatible store holding all
// tenant-scoped entities.
type DatabaseConfig struct {
	Host     string            `mapstructure:"host" yaml:"host"`
	Port     int               `mapstructure:"port" yaml:"port"`
	User     string            `mapstructure:"user" yaml:"user"`
	Password string            `mapstructure:"password" yaml:"password"`
	Name     string            `mapstructure:"name" yaml:"name"`
	TLS      bool              `mapstructure:"tls" yaml:"tls"`
	Params   map[string]string `mapstructure:"params" yaml:"params"`
}

// CacheConfig configures the Redis-backed session store and audit sink.
type CacheConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
}

// AuthConfig configures token validation for the identity resolver.
type AuthConfig struct {
	// JWTSecret enables HMAC JWT bearer tokens alongside session tokens
	// when non-empty.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	// SessionTTLMinutes bounds session idle time before re-login.
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes" yaml:"session_ttl_minutes"`
}

// PolicyConfig is the role/operation policy table consumed by the access
// decision layer. Loaded at process start, read-only afterwards.
type PolicyConfig struct {
	// Product policy left these configurable: whether accountants may manage
	// (create/update/delete) vendor and user records of their organization.
	AccountantManageVendors bool `mapstructure:"accountant_manage_vendors" yaml:"accountant_manage_vendors"`
	AccountantManageUsers   bool `mapstructure:"accountant_manage_users" yaml:"accountant_manage_users"`
	// Overrides are raw "role.entity.operation" -> "allow"|"deny" entries
	// applied on top of the built-in matrix.
	Overrides map[string]string `mapstructure:"overrides" yaml:"overrides"`
}

// AuditConfig configures the access audit emitter.
type AuditConfig struct {
	// Sink selects where accepted-operation events go: "log" or "cache".
	Sink string `mapstructure:"sink" yaml:"sink"`
	// Buffer is the in-flight event queue size; events beyond it are dropped
	// rather than blocking request handling.
	Buffer int `mapstructure:"buffer" yaml:"buffer"`
	// LogDenied additionally audits denied attempts (security auditing).
	LogDenied bool `mapstructure:"log_denied" yaml:"log_denied"`
}

// CORSConfig handles Cross-Origin Resource Sharing for the SPA frontend.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}
