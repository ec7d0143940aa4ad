package config

// Config represents the complete plugbus configuration.
type Config struct {
	Service    ServiceConfig         `yaml:"service"`
	State      StateConfig           `yaml:"state"`
	Platform   PlatformConfig        `yaml:"platform"`
	PluginsDir string                `yaml:"plugins_dir"`
	API        APIConfig             `yaml:"api,omitempty"`
	Telemetry  TelemetryConfig       `yaml:"telemetry,omitempty"`
	Webhooks   *WebhooksConfig       `yaml:"webhooks,omitempty"`
	Tenants    map[string]TenantConf `yaml:"tenants,omitempty"`
	Include    []string              `yaml:"include,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level" env:"PLUGBUS_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"PLUGBUS_LOG_FORMAT"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path" env:"PLUGBUS_STATE_PATH"`
}

// PlatformConfig declares the platform version components are checked against.
type PlatformConfig struct {
	Version string `yaml:"version" env:"PLUGBUS_PLATFORM_VERSION"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen" env:"PLUGBUS_API_LISTEN"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the bearer token required on every route except /healthz.
	// Empty disables authentication.
	APIKey string `yaml:"api_key" env:"PLUGBUS_API_KEY"`
	// Tokens are additional bearer tokens limited to their scopes.
	Tokens []APITokenConfig `yaml:"tokens,omitempty"`
}

// APITokenConfig is a scoped bearer token.
type APITokenConfig struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// TelemetryConfig configures trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" env:"PLUGBUS_OTEL_ENDPOINT"`
}

// WebhooksConfig defines the signed inbound webhook listener.
type WebhooksConfig struct {
	Listen    string                  `yaml:"listen"`
	Endpoints []WebhookEndpointConfig `yaml:"endpoints"`
}

// WebhookEndpointConfig maps one POST path onto a channel send for a tenant.
type WebhookEndpointConfig struct {
	Path            string `yaml:"path"`
	Tenant          string `yaml:"tenant"`
	Channel         string `yaml:"channel"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
	MaxBodySize     string `yaml:"max_body_size,omitempty"`
}

// TenantConf seeds a tenant and the optional components enabled for it.
type TenantConf struct {
	Name       string   `yaml:"name"`
	Components []string `yaml:"components"`
}

// ChecksumManifest is the on-disk .checksums format.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// DefaultPlatformVersion is used when platform.version is not configured.
const DefaultPlatformVersion = "1.0.0"

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "plugbus",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/plugbus.db",
		},
		Platform: PlatformConfig{
			Version: DefaultPlatformVersion,
		},
		PluginsDir: "./plugins",
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Tenants: make(map[string]TenantConf),
	}
}
