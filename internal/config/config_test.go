// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, overrides, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearOverrides(t *testing.T) {
	t.Helper()
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvMongoURI, "")
}

func TestLoad_ValidConfig(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8000"
  cors_origins: ["https://app.example.com"]

database:
  path: "./test.db"
  timeout: "2s"

auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: "2h"

chat:
  send_buffer: 16
  ping_interval: "10s"
  pong_timeout: "25s"
  max_message_bytes: 1024

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/prom"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8000" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want default %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Database.Timeout != 2*time.Second {
		t.Errorf("Database.Timeout = %v", cfg.Database.Timeout)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Chat.SendBuffer != 16 || cfg.Chat.MaxMessageBytes != 1024 {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Chat.PingInterval != 10*time.Second || cfg.Chat.PongTimeout != 25*time.Second {
		t.Errorf("Chat keepalive = %v/%v", cfg.Chat.PingInterval, cfg.Chat.PongTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/prom" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, `
server:
  http_addr: ":8000"
database:
  path: "./test.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.TokenTTL != DefaultTokenTTL {
		t.Errorf("TokenTTL = %v, want %v", cfg.Auth.TokenTTL, DefaultTokenTTL)
	}
	if cfg.Chat.SendBuffer != DefaultSendBuffer {
		t.Errorf("SendBuffer = %d", cfg.Chat.SendBuffer)
	}
	if cfg.Chat.PingInterval != DefaultPingInterval || cfg.Chat.PongTimeout != DefaultPongTimeout {
		t.Errorf("keepalive = %v/%v", cfg.Chat.PingInterval, cfg.Chat.PongTimeout)
	}
	if cfg.Database.Name != DefaultMongoDatabase || cfg.Database.Timeout != DefaultDatabaseTimeout {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q", cfg.Metrics.Path)
	}
}

func TestLoad_DisablePing(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, `
server:
  http_addr: ":8000"
database:
  path: "./test.db"
auth:
  jwt_secret: "`+testSecret+`"
chat:
  ping_interval: "0s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chat.PingInterval != 0 {
		t.Errorf("PingInterval = %v, want 0", cfg.Chat.PingInterval)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearOverrides(t)
	t.Setenv("TEST_TROWEL_SECRET", testSecret)
	t.Setenv("TEST_TROWEL_ADDR", "127.0.0.1:9000")

	path := writeConfig(t, `
server:
  http_addr: "${TEST_TROWEL_ADDR}"
database:
  path: "./test.db"
auth:
  jwt_secret: "${TEST_TROWEL_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("JWTSecret not expanded")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvJWTSecret, "override-secret-override-secret-32")
	t.Setenv(EnvDBPath, "/tmp/override.db")
	t.Setenv(EnvMongoURI, "mongodb://db:27017")

	path := writeConfig(t, `
server:
  http_addr: ":8000"
database:
  path: "./file.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "override-secret-override-secret-32" {
		t.Errorf("JWTSecret override not applied")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.URI != "mongodb://db:27017" {
		t.Errorf("Database.URI = %q", cfg.Database.URI)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestLoadDatabase_IgnoresOtherSections(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, `
database:
  driver: "sqlite"
  path: "/tmp/trowel.db"
images:
  enabled: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error without jwt_secret")
	}

	cfg, err := LoadDatabase(path)
	if err != nil {
		t.Fatalf("LoadDatabase() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/trowel.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoadDatabase_ValidatesDatabase(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, `
database:
  driver: "mongo"
`)

	_, err := LoadDatabase(path)
	if err == nil || !strings.Contains(err.Error(), "database.uri") {
		t.Fatalf("LoadDatabase() error = %v, want database.uri error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, `
server:
  http_addr: ":8000"
database:
  path: "./test.db"
auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: "forever"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "auth.token_ttl") {
		t.Fatalf("Load() error = %v, want token_ttl parse error", err)
	}
}

func validConfig() *Config {
	cfg := &Config{
		Server:   ServerConfig{HTTPAddr: ":8000"},
		Database: DatabaseConfig{Path: "./test.db"},
		Auth:     AuthConfig{JWTSecret: testSecret},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name: "tailscale without http addr",
			mutate: func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "trowel"}
			},
		},
		{
			name:    "tailscale without hostname",
			mutate:  func(c *Config) { c.Tailscale.Enabled = true },
			wantErr: "tailscale.hostname",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "at least 32 bytes",
		},
		{
			name:    "zero token ttl",
			mutate:  func(c *Config) { c.Auth.TokenTTL = 0 },
			wantErr: "auth.token_ttl",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.driver",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.Database.Driver = DriverMongo },
			wantErr: "database.uri",
		},
		{
			name: "mongo with uri",
			mutate: func(c *Config) {
				c.Database.Driver = DriverMongo
				c.Database.URI = "mongodb://localhost:27017"
			},
		},
		{
			name:    "pong shorter than ping",
			mutate:  func(c *Config) { c.Chat.PongTimeout = c.Chat.PingInterval },
			wantErr: "chat.pong_timeout",
		},
		{
			name:    "images without bucket",
			mutate:  func(c *Config) { c.Images = ImagesConfig{Enabled: true, Region: "us-east-1"} },
			wantErr: "images.bucket",
		},
		{
			name: "images with half credentials",
			mutate: func(c *Config) {
				c.Images = ImagesConfig{Enabled: true, Bucket: "b", Region: "us-east-1", AccessKey: "k"}
			},
			wantErr: "images.access_key",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/trowel.yaml")
	if got := DefaultPath(); got != "/etc/trowel.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "trowel", "server.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestExample_Parses(t *testing.T) {
	clearOverrides(t)
	t.Setenv(EnvJWTSecret, testSecret)

	cfg, err := Parse([]byte(Example))
	if err != nil {
		t.Fatalf("Parse(Example) error = %v", err)
	}
	if cfg.Auth.TokenTTL != 400*time.Minute {
		t.Errorf("TokenTTL = %v", cfg.Auth.TokenTTL)
	}
}
