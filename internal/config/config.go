// ABOUTME: Configuration loading and parsing for trowel
// ABOUTME: Supports YAML files with environment variable expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength mirrors the token service requirement.
const MinJWTSecretLength = 32

// Environment variables that override file values.
const (
	EnvConfigPath = "TROWEL_CONFIG"
	EnvJWTSecret  = "TROWEL_JWT_SECRET"
	EnvDBPath     = "TROWEL_DB_PATH"
	EnvMongoURI   = "TROWEL_MONGO_URI"
)

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Defaults applied when a field is left empty.
const (
	DefaultTokenTTL        = 400 * time.Minute
	DefaultDatabaseTimeout = 5 * time.Second
	DefaultMongoDatabase   = "trowel"
	DefaultSendBuffer      = 64
	DefaultPingInterval    = 30 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultMaxMessageBytes = 4096
	DefaultPresignTTL      = 15 * time.Minute
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete trowel configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Chat      ChatConfig      `yaml:"chat"`
	Images    ImagesConfig    `yaml:"images"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// CORSOrigins lists allowed origins; empty or "*" allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // serve on :443 with the tailnet certificate
	Funnel    bool   `yaml:"funnel"` // expose publicly through Funnel (implies HTTPS)
}

// DatabaseConfig selects and configures the store backend
type DatabaseConfig struct {
	Driver  string        `yaml:"driver"` // "sqlite" (default) or "mongo"
	Path    string        `yaml:"path"`   // sqlite file, or ":memory:"
	URI     string        `yaml:"uri"`    // mongo connection string
	Name    string        `yaml:"name"`   // mongo database name
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// ChatConfig holds websocket relay configuration
type ChatConfig struct {
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	PingInterval    time.Duration `yaml:"-"`
	PongTimeout     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PingIntervalRaw string `yaml:"ping_interval"`
	PongTimeoutRaw  string `yaml:"pong_timeout"`
}

// ImagesConfig holds the optional S3 image offload configuration
type ImagesConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	Endpoint   string        `yaml:"endpoint"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	PresignTTL time.Duration `yaml:"-"`

	PresignTTLRaw string `yaml:"presign_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultPath returns the config file location.
// Priority: TROWEL_CONFIG env var > XDG_CONFIG_HOME/trowel/server.yaml > ~/.config/trowel/server.yaml
func DefaultPath() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "trowel", "server.yaml")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "trowel", "server.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, the TROWEL_*
// overrides are applied, and duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// LoadDatabase reads a configuration file for commands that only open the
// store. Only the database section is validated.
func LoadDatabase(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Parse builds a Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// decode expands, unmarshals and defaults the YAML without validating it.
func decode(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvMongoURI); v != "" {
		cfg.Database.URI = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = DefaultMongoDatabase
	}
	if cfg.Database.Timeout == 0 {
		cfg.Database.Timeout = DefaultDatabaseTimeout
	}
	if cfg.Auth.TokenTTLRaw == "" {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.Chat.SendBuffer == 0 {
		cfg.Chat.SendBuffer = DefaultSendBuffer
	}
	if cfg.Chat.MaxMessageBytes == 0 {
		cfg.Chat.MaxMessageBytes = DefaultMaxMessageBytes
	}
	// An explicit "0s" disables keepalive; only fill in when unset.
	if cfg.Chat.PingIntervalRaw == "" {
		cfg.Chat.PingInterval = DefaultPingInterval
	}
	if cfg.Chat.PongTimeoutRaw == "" {
		cfg.Chat.PongTimeout = DefaultPongTimeout
	}
	if cfg.Images.PresignTTL == 0 {
		cfg.Images.PresignTTL = DefaultPresignTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set %s)", EnvJWTSecret)
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if c.Chat.SendBuffer < 0 {
		return errors.New("chat.send_buffer must not be negative")
	}
	if c.Chat.PingInterval < 0 || c.Chat.PongTimeout < 0 {
		return errors.New("chat.ping_interval and chat.pong_timeout must not be negative")
	}
	if c.Chat.PingInterval > 0 && c.Chat.PongTimeout <= c.Chat.PingInterval {
		return errors.New("chat.pong_timeout must be longer than chat.ping_interval")
	}

	if c.Images.Enabled {
		if c.Images.Bucket == "" {
			return errors.New("images.bucket is required when images are enabled")
		}
		if c.Images.Region == "" {
			return errors.New("images.region is required when images are enabled")
		}
		if (c.Images.AccessKey == "") != (c.Images.SecretKey == "") {
			return errors.New("images.access_key and images.secret_key must be set together")
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if !slices.Contains([]string{"text", "json"}, c.Logging.Format) {
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
	}

	return nil
}

// ValidateDatabase checks only the database section.
func (c *Config) ValidateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver (or set %s)", EnvDBPath)
		}
	case DriverMongo:
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for the mongo driver (or set %s)", EnvMongoURI)
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use %q or %q)", c.Database.Driver, DriverSQLite, DriverMongo)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"database.timeout", cfg.Database.TimeoutRaw, &cfg.Database.Timeout},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"chat.ping_interval", cfg.Chat.PingIntervalRaw, &cfg.Chat.PingInterval},
		{"chat.pong_timeout", cfg.Chat.PongTimeoutRaw, &cfg.Chat.PongTimeout},
		{"images.presign_ttl", cfg.Images.PresignTTLRaw, &cfg.Images.PresignTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Example is the starter configuration written by `trowel init`.
const Example = `# trowel server configuration

server:
  http_addr: "0.0.0.0:8000"
  cors_origins: ["*"]

tailscale:
  enabled: false
  hostname: "trowel"
  auth_key: "${TS_AUTHKEY}"
  state_dir: ""
  ephemeral: false
  https: false
  funnel: false

database:
  driver: "sqlite"          # or "mongo"
  path: "./trowel.db"
  uri: "${TROWEL_MONGO_URI}"
  name: "trowel"
  timeout: "5s"

auth:
  # At least 32 bytes. Never commit a real secret.
  jwt_secret: "${TROWEL_JWT_SECRET}"
  token_ttl: "400m"

chat:
  send_buffer: 64
  ping_interval: "30s"
  pong_timeout: "60s"
  max_message_bytes: 4096

images:
  enabled: false
  bucket: "trowel-images"
  region: "us-east-1"
  endpoint: ""              # e.g. http://localhost:9000 for MinIO
  access_key: "${TROWEL_S3_ACCESS_KEY}"
  secret_key: "${TROWEL_S3_SECRET_KEY}"
  presign_ttl: "15m"

logging:
  level: "info"
  format: "text"            # or "json"

metrics:
  enabled: true
  path: "/metrics"
`
