package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./compuse.db" {
			t.Errorf("expected database path ./compuse.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Storage.Driver != "disk" {
			t.Errorf("expected disk storage driver, got %s", config.Storage.Driver)
		}

		if config.Capture.SampleRate != 44100 || config.Capture.Channels != 2 {
			t.Errorf("expected 44100Hz stereo capture, got %dHz %dch", config.Capture.SampleRate, config.Capture.Channels)
		}

		if config.Capture.MicGain != 1.0 || config.Capture.SystemGain != 1.0 {
			t.Errorf("expected unity gains, got mic=%v system=%v", config.Capture.MicGain, config.Capture.SystemGain)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[storage]
driver = "bucket"
bucket_url = "https://storage.example.com"
bucket = "clips"
api_key = "secret"

[capture]
mic_gain = 0.8
system_gain = 0.5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Storage.Driver != "bucket" || config.Storage.Bucket != "clips" {
			t.Errorf("expected bucket storage 'clips', got %s/%s", config.Storage.Driver, config.Storage.Bucket)
		}

		if config.Capture.MicGain != 0.8 || config.Capture.SystemGain != 0.5 {
			t.Errorf("expected gains 0.8/0.5, got %v/%v", config.Capture.MicGain, config.Capture.SystemGain)
		}

		if config.Capture.SampleRate != 44100 {
			t.Errorf("expected unset sample rate to keep default 44100, got %d", config.Capture.SampleRate)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "ftp" }},
			{name: "disk without dir", mutate: func(c *Config) { c.Storage.Dir = "" }},
			{name: "bucket without url", mutate: func(c *Config) { c.Storage.Driver = "bucket"; c.Storage.BucketURL = "" }},
			{name: "zero sample rate", mutate: func(c *Config) { c.Capture.SampleRate = 0 }},
			{name: "negative gain", mutate: func(c *Config) { c.Capture.MicGain = -1 }},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
