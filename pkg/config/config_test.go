package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Data.DefaultDatabase != "mirseo" {
		t.Errorf("Expected DefaultDatabase=mirseo, got %s", cfg.Data.DefaultDatabase)
	}
	if cfg.Data.Dir == "" {
		t.Error("Expected non-empty data dir")
	}

	if cfg.Engine.BloomFalsePositiveRate != 0.01 {
		t.Errorf("Expected BloomFalsePositiveRate=0.01, got %f", cfg.Engine.BloomFalsePositiveRate)
	}
	if cfg.Engine.ScanChunkSize != 1024 {
		t.Errorf("Expected ScanChunkSize=1024, got %d", cfg.Engine.ScanChunkSize)
	}
	if cfg.Engine.ScanMaxMemoryBytes != 64*1024*1024 {
		t.Errorf("Expected ScanMaxMemoryBytes=64MiB, got %d", cfg.Engine.ScanMaxMemoryBytes)
	}
	if !cfg.Engine.EarlyTermination {
		t.Error("Expected EarlyTermination=true")
	}

	if !cfg.RestAPI.Enabled {
		t.Error("Expected RestAPI.Enabled=true")
	}
	if cfg.RestAPI.Port != 7227 {
		t.Errorf("Expected Port=7227, got %d", cfg.RestAPI.Port)
	}
	if !cfg.RestAPI.CORS {
		t.Error("Expected CORS=true")
	}

	if !cfg.RateLimit.Enabled {
		t.Error("Expected RateLimit.Enabled=true")
	}
	if cfg.RateLimit.Query.RequestsPerSecond != 50 {
		t.Errorf("Expected query rps=50, got %f", cfg.RateLimit.Query.RequestsPerSecond)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name: "empty data dir",
			modify: func(c *Config) {
				c.Data.Dir = ""
			},
			expectErr: true,
		},
		{
			name: "empty default database",
			modify: func(c *Config) {
				c.Data.DefaultDatabase = ""
			},
			expectErr: true,
		},
		{
			name: "bloom rate out of range",
			modify: func(c *Config) {
				c.Engine.BloomFalsePositiveRate = 1.5
			},
			expectErr: true,
		},
		{
			name: "zero chunk size",
			modify: func(c *Config) {
				c.Engine.ScanChunkSize = 0
			},
			expectErr: true,
		},
		{
			name: "invalid port",
			modify: func(c *Config) {
				c.RestAPI.Port = 99999
			},
			expectErr: true,
		},
		{
			name: "invalid logging level",
			modify: func(c *Config) {
				c.Logging.Level = "invalid"
			},
			expectErr: true,
		},
		{
			name: "invalid logging format",
			modify: func(c *Config) {
				c.Logging.Format = "xml"
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	// Change to temp directory where no config exists
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	// Temporarily override HOME to prevent finding user's config
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	// Should return default config without error
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error with missing config, got: %v", err)
	}

	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}

	if cfg.RestAPI.Port != 7227 {
		t.Errorf("Expected default port 7227, got %d", cfg.RestAPI.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
profile: test
data:
  dir: /tmp/mirseodb-test
  default_database: testdb
engine:
  bloom_false_positive_rate: 0.05
  scan_chunk_size: 256
rest_api:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Profile != "test" {
		t.Errorf("Expected profile=test, got %s", cfg.Profile)
	}
	if cfg.Data.DefaultDatabase != "testdb" {
		t.Errorf("Expected default_database=testdb, got %s", cfg.Data.DefaultDatabase)
	}
	if cfg.Engine.BloomFalsePositiveRate != 0.05 {
		t.Errorf("Expected bloom rate 0.05, got %f", cfg.Engine.BloomFalsePositiveRate)
	}
	if cfg.Engine.ScanChunkSize != 256 {
		t.Errorf("Expected chunk size 256, got %d", cfg.Engine.ScanChunkSize)
	}
	if cfg.RestAPI.Port != 4000 {
		t.Errorf("Expected port 4000, got %d", cfg.RestAPI.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level=debug, got %s", cfg.Logging.Level)
	}

	// Engine keys not present in the file keep their defaults
	if cfg.Engine.ScanMaxMemoryBytes != 64*1024*1024 {
		t.Errorf("Expected default memory ceiling, got %d", cfg.Engine.ScanMaxMemoryBytes)
	}
}

func TestInstanceSettings(t *testing.T) {
	dir := t.TempDir()

	// Missing file: defaults, protection on
	s, err := LoadInstanceSettings(dir)
	if err != nil {
		t.Fatalf("LoadInstanceSettings: %v", err)
	}
	if !s.SQLInjectionProtect {
		t.Error("Expected protection on by default")
	}

	content := "# comment line\nSQL_INJECTON_PROTECT=0\n"
	if err := os.WriteFile(filepath.Join(dir, "config.cfg"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	s, err = LoadInstanceSettings(dir)
	if err != nil {
		t.Fatalf("LoadInstanceSettings: %v", err)
	}
	if s.SQLInjectionProtect {
		t.Error("Expected protection off")
	}

	// Round trip
	s.SQLInjectionProtect = true
	if err := SaveInstanceSettings(dir, s); err != nil {
		t.Fatal(err)
	}
	s2, err := LoadInstanceSettings(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !s2.SQLInjectionProtect {
		t.Error("Expected protection on after round trip")
	}

	// Invalid value
	if err := os.WriteFile(filepath.Join(dir, "config.cfg"), []byte("SQL_INJECTON_PROTECT=maybe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadInstanceSettings(dir); err == nil {
		t.Error("Expected error for invalid boolean value")
	}
}

func TestRouteConfig(t *testing.T) {
	dir := t.TempDir()

	rc, err := LoadRouteConfig(dir)
	if err != nil {
		t.Fatalf("LoadRouteConfig: %v", err)
	}
	if rc.Fallback != "" {
		t.Errorf("Expected empty fallback, got %q", rc.Fallback)
	}

	rc.Fallback = "http://fallback.example:7227"
	if err := SaveRouteConfig(dir, rc); err != nil {
		t.Fatal(err)
	}
	rc2, err := LoadRouteConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if rc2.Fallback != "http://fallback.example:7227" {
		t.Errorf("Fallback did not round trip, got %q", rc2.Fallback)
	}
}
