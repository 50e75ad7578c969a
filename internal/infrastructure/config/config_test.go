package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
instrument:
  id: "tem-01"
  name: "Test Microscope"
  variables:
    - id: "focus"
      name: "Focus"
      min_value: 0
      max_value: 100
    - id: "magnetic-field"
      name: "Objective Lens Current"
      min_value: 0
      max_value: 4096
      calibration:
        factor: 0.001
        name: "Magnetic Field"
        unit: "T"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Instrument.ID != "tem-01" {
		t.Errorf("Instrument.ID = %q, want %q", cfg.Instrument.ID, "tem-01")
	}

	if len(cfg.Instrument.Variables) != 2 {
		t.Fatalf("len(Variables) = %d, want 2", len(cfg.Instrument.Variables))
	}
	// Declaration order must survive the YAML round trip.
	if cfg.Instrument.Variables[0].ID != "focus" {
		t.Errorf("Variables[0].ID = %q, want %q", cfg.Instrument.Variables[0].ID, "focus")
	}
	cal := cfg.Instrument.Variables[1].Calibration
	if cal == nil || cal.Factor != 0.001 || cal.Unit != "T" {
		t.Errorf("Variables[1].Calibration = %+v, want factor 0.001 unit T", cal)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
instrument:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty instrument.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validJWTSecret is a secret that meets the 32-character minimum requirement
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		return &Config{
			Instrument: InstrumentConfig{ID: "tem-01"},
			Run:        RunConfig{OutputDir: "/data/runs"},
			Database:   DatabaseConfig{Path: "/data/sweepcore.db"},
			MQTT:       MQTTConfig{QoS: 1},
			API:        APIConfig{Port: 8080},
			Security:   SecurityConfig{JWT: JWTConfig{Secret: validJWTSecret}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing instrument ID", func(c *Config) { c.Instrument.ID = "" }, true},
		{
			"duplicate variable id",
			func(c *Config) {
				c.Instrument.Variables = []VariableConfig{
					{ID: "focus"}, {ID: "focus"},
				}
			},
			true,
		},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"missing output dir", func(c *Config) { c.Run.OutputDir = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, true},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Instrument: InstrumentConfig{
			CommandTimeout: 10,
			SettleDelay:    250,
		},
		Run: RunConfig{CaptureTimeout: 20},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}

	if got := cfg.GetCommandTimeout().Seconds(); got != 10 {
		t.Errorf("GetCommandTimeout() = %v, want 10", got)
	}

	if got := cfg.GetSettleDelay().Milliseconds(); got != 250 {
		t.Errorf("GetSettleDelay() = %v, want 250", got)
	}

	if got := cfg.GetCaptureTimeout().Seconds(); got != 20 {
		t.Errorf("GetCaptureTimeout() = %v, want 20", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("SWEEPCORE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SWEEPCORE_RUN_OUTPUT_DIR", "/custom/runs")
	t.Setenv("SWEEPCORE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SWEEPCORE_MQTT_USERNAME", "testuser")
	t.Setenv("SWEEPCORE_MQTT_PASSWORD", "testpass")
	t.Setenv("SWEEPCORE_API_HOST", "192.168.1.1")
	t.Setenv("SWEEPCORE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SWEEPCORE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.Run.OutputDir != "/custom/runs" {
		t.Errorf("Run.OutputDir = %q, want %q", cfg.Run.OutputDir, "/custom/runs")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Instrument.ID == "" {
		t.Error("defaultConfig should have non-empty Instrument.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if cfg.Run.NameFormat == "" {
		t.Error("defaultConfig should have non-empty Run.NameFormat")
	}
}
