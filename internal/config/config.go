// Package config provides configuration loading for the collector.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the collector configuration: the HTTP server, the buffer engine,
// and one section per optional backend. Which sinks are active is determined
// entirely by credential presence, never by separate enable flags.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Buffer  BufferConfig  `mapstructure:"buffer"`
	Storage StorageConfig `mapstructure:"storage"`
	Capture CaptureConfig `mapstructure:"capture"`
	OTLP    OTLPConfig    `mapstructure:"otlp"`
	Archive ArchiveConfig `mapstructure:"archive"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

// ServerConfig holds the ingest HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds producer authentication settings. TokenHash is a bcrypt
// hash of the static ingest token; JWTSecret enables HS256 bearer tokens.
// With neither set, ingest authentication is disabled.
type AuthConfig struct {
	TokenHash string `mapstructure:"token_hash"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// BufferConfig holds flush engine tuning.
type BufferConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	SinkTimeout   time.Duration `mapstructure:"sink_timeout"`
}

// StorageConfig selects the buffer persistence backend.
type StorageConfig struct {
	Backend        string `mapstructure:"backend"` // "redis" (default) or "postgres"
	RedisURL       string `mapstructure:"redis_url"`
	PostgresURL    string `mapstructure:"postgres_url"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// CaptureConfig is the primary backend: the general-capture API plus its
// OTLP log endpoint (bearer token auth).
type CaptureConfig struct {
	Host         string `mapstructure:"host"`
	APIKey       string `mapstructure:"api_key"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPToken    string `mapstructure:"otlp_token"`
}

// Enabled reports whether capture calls should be made.
func (c CaptureConfig) Enabled() bool {
	return c.Host != "" && c.APIKey != ""
}

// OTLPEnabled reports whether the primary backend's OTLP paths are active.
func (c CaptureConfig) OTLPEnabled() bool {
	return c.OTLPEndpoint != ""
}

// OTLPConfig is the secondary backend: OTLP-over-HTTP with basic auth of
// instanceID:token. Absence disables all three of its dispatch paths.
type OTLPConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	InstanceID string `mapstructure:"instance_id"`
	Token      string `mapstructure:"token"`
}

// Enabled reports whether the secondary backend is configured.
func (c OTLPConfig) Enabled() bool {
	return c.Endpoint != "" && c.InstanceID != "" && c.Token != ""
}

// ArchiveConfig is the optional OpenSearch archive sink.
type ArchiveConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Insecure    bool   `mapstructure:"insecure"`
	IndexPrefix string `mapstructure:"index_prefix"`
}

// Enabled reports whether the archive sink is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.URL != ""
}

// NATSConfig is the optional broker-side ingestion source.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Queue         string `mapstructure:"queue"`
}

// Enabled reports whether the NATS source is configured.
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

// Load reads configuration from the given file (optional) and COLLECTOR_*
// environment variables, over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COLLECTOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("buffer.flush_interval", "30s")
	v.SetDefault("buffer.sink_timeout", "10s")

	v.SetDefault("storage.backend", "redis")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.migrations_path", "migrations")

	// Credential keys default to empty so environment-only overrides bind.
	v.SetDefault("auth.token_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("capture.host", "")
	v.SetDefault("capture.api_key", "")
	v.SetDefault("capture.otlp_endpoint", "")
	v.SetDefault("capture.otlp_token", "")
	v.SetDefault("otlp.endpoint", "")
	v.SetDefault("otlp.instance_id", "")
	v.SetDefault("otlp.token", "")

	v.SetDefault("archive.url", "")
	v.SetDefault("archive.username", "")
	v.SetDefault("archive.password", "")
	v.SetDefault("archive.index_prefix", "telemetry")
	v.SetDefault("archive.insecure", false)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "telemetry")
	v.SetDefault("nats.queue", "collector")
}
