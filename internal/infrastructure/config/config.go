package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Sweep Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Run        RunConfig        `yaml:"run"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// InstrumentConfig identifies the instrument and declares its sweepable
// variables. Declaration order matters: it decides which variable is
// substituted for an unresolvable one during lenient normalisation.
type InstrumentConfig struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Simulated bool             `yaml:"simulated"`
	Variables []VariableConfig `yaml:"variables"`

	// CommandTimeout is how long to wait for a set-point acknowledgement
	// from the instrument bridge, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// SettleDelay is the pause between applying a set-point and
	// capturing, in milliseconds.
	SettleDelay int `yaml:"settle_delay"`

	// Bridge optionally declares a bridge process that Sweep Core
	// launches and supervises. An empty command means the bridge is
	// managed externally.
	Bridge BridgeProcessConfig `yaml:"bridge"`
}

// BridgeProcessConfig declares a supervised instrument bridge process.
type BridgeProcessConfig struct {
	Command          string   `yaml:"command"`
	Args             []string `yaml:"args"`
	RestartOnFailure bool     `yaml:"restart_on_failure"`
	RestartDelay     int      `yaml:"restart_delay"` // seconds
	MaxRestarts      int      `yaml:"max_restarts"`  // 0 means unlimited
}

// VariableConfig declares one sweepable instrument variable.
type VariableConfig struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Min          *float64           `yaml:"min_value,omitempty"`
	Max          *float64           `yaml:"max_value,omitempty"`
	Unit         string             `yaml:"unit,omitempty"`
	DefaultStart *float64           `yaml:"default_start,omitempty"`
	DefaultEnd   *float64           `yaml:"default_end,omitempty"`
	DefaultStep  *float64           `yaml:"default_step,omitempty"`
	Calibration  *CalibrationConfig `yaml:"calibration,omitempty"`
}

// CalibrationConfig declares a display-only linear calibration.
type CalibrationConfig struct {
	Factor float64 `yaml:"factor"`
	Name   string  `yaml:"name,omitempty"`
	Unit   string  `yaml:"unit,omitempty"`
}

// SweepConfig carries operator-level sweep defaults, probed during
// inference after explicit input but before the variable defaults.
type SweepConfig struct {
	DefaultStart map[string]float64 `yaml:"default_start,omitempty"`
	DefaultEnd   map[string]float64 `yaml:"default_end,omitempty"`
	DefaultStep  map[string]float64 `yaml:"default_step,omitempty"`
}

// RunConfig contains measurement run settings.
type RunConfig struct {
	// OutputDir is where captured frames are written.
	OutputDir string `yaml:"output_dir"`

	// NameFormat templates captured frame names. Supported placeholders:
	// {counter}, {time:<layout>}, {var:<variable-id>}.
	NameFormat string `yaml:"name_format"`

	// CaptureTimeout is how long to wait for one capture, in seconds.
	CaptureTimeout int `yaml:"capture_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	Operator  OperatorConfig  `yaml:"operator"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// OperatorConfig contains the single-operator login credentials.
// PasswordHash is an argon2id PHC string, never a plaintext password.
type OperatorConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SWEEPCORE_SECTION_KEY
// For example: SWEEPCORE_DATABASE_PATH, SWEEPCORE_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			ID:             "instrument-001",
			Name:           "Sweep Core",
			Simulated:      true,
			CommandTimeout: 10,
			SettleDelay:    100,
		},
		Run: RunConfig{
			OutputDir:      "./data/runs",
			NameFormat:     "{counter}_{time:20060102_150405}",
			CaptureTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/sweepcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sweepcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 100,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SWEEPCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SWEEPCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Run output
	if v := os.Getenv("SWEEPCORE_RUN_OUTPUT_DIR"); v != "" {
		cfg.Run.OutputDir = v
	}

	// MQTT
	if v := os.Getenv("SWEEPCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SWEEPCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SWEEPCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SWEEPCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("SWEEPCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("SWEEPCORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Instrument validation
	if c.Instrument.ID == "" {
		errs = append(errs, "instrument.id is required")
	}
	seen := make(map[string]bool, len(c.Instrument.Variables))
	for _, v := range c.Instrument.Variables {
		if v.ID == "" {
			errs = append(errs, "instrument.variables entries require an id")
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Sprintf("instrument.variables id %q is declared twice", v.ID))
		}
		seen[v.ID] = true
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Run validation
	if c.Run.OutputDir == "" {
		errs = append(errs, "run.output_dir is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED.
	// A forged token would hand control of physical lab hardware to an
	// attacker, so weak secrets are rejected outright.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SWEEPCORE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetCommandTimeout returns the instrument command timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Instrument.CommandTimeout) * time.Second
}

// GetSettleDelay returns the post-set settle delay as a Duration.
func (c *Config) GetSettleDelay() time.Duration {
	return time.Duration(c.Instrument.SettleDelay) * time.Millisecond
}

// GetCaptureTimeout returns the capture timeout as a Duration.
func (c *Config) GetCaptureTimeout() time.Duration {
	return time.Duration(c.Run.CaptureTimeout) * time.Second
}
