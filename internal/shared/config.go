package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Capture  CaptureConfig  `toml:"capture"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"` // Requests per second per client; 0 disables limiting
	Burst     int     `toml:"burst"`
}

// StorageConfig selects where persisted clip audio is written.
type StorageConfig struct {
	Driver    string  `toml:"driver"` // "disk" or "bucket"
	Dir       string  `toml:"dir"`
	BucketURL string  `toml:"bucket_url"`
	Bucket    string  `toml:"bucket"`
	APIKey    string  `toml:"api_key"`
	Workers   int     `toml:"workers"`    // Concurrent uploads during a sync
	RateLimit float64 `toml:"rate_limit"` // Storage requests per second; 0 disables limiting
}

// CaptureConfig contains defaults for the software capture provider.
type CaptureConfig struct {
	SampleRate  int     `toml:"sample_rate"`
	Channels    int     `toml:"channels"`
	ChunkFrames int     `toml:"chunk_frames"`
	MicGain     float64 `toml:"mic_gain"`
	SystemGain  float64 `toml:"system_gain"`
	MicInput    string  `toml:"mic_input"`
	SystemInput string  `toml:"system_input"`
}

// Validate checks the settings the runtime cannot recover from.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "disk":
		if c.Storage.Dir == "" {
			return fmt.Errorf("%w: storage.dir is required for the disk driver", ErrInvalidConfig)
		}
	case "bucket":
		if c.Storage.BucketURL == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket_url and storage.bucket are required for the bucket driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.Capture.SampleRate <= 0 || c.Capture.Channels <= 0 {
		return fmt.Errorf("%w: capture.sample_rate and capture.channels must be positive", ErrInvalidConfig)
	}
	if c.Capture.MicGain < 0 || c.Capture.SystemGain < 0 {
		return fmt.Errorf("%w: capture gains cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
