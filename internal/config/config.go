// Package config provides configuration management for the jsaot debug
// server.
//
// Configuration controls:
//   - Capability mode (readonly vs full): determines which tools are available
//   - Record lookup: where debug-information records live and how script
//     names map to record files
//   - Adapter settings: how to reach the DAP server fronting the engine
//
// Configuration can be loaded from a JSON file or use sensible defaults.
// The readonly mode exposes only inspection tools, while full mode enables
// execution control as well.
package config

import (
	"encoding/json"
	"os"
	"time"
)

// CapabilityMode defines the level of debugging capabilities exposed
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly" // Only inspection tools
	ModeFull     CapabilityMode = "full"     // All tools enabled
)

// Config holds the server configuration
type Config struct {
	Mode CapabilityMode `json:"mode"`

	// Records controls debug-information record lookup
	Records RecordConfig `json:"records"`

	// Adapter controls the connection to the DAP server
	Adapter AdapterConfig `json:"adapter"`
}

// RecordConfig holds debug-information record lookup settings
type RecordConfig struct {
	// Root is the directory searched for record files
	Root string `json:"root"`

	// Suffix is appended to a script name to form its record file name
	Suffix string `json:"suffix"`

	// Watch enables cache invalidation when record files change on disk
	Watch bool `json:"watch"`
}

// AdapterConfig holds DAP server connection settings
type AdapterConfig struct {
	// Address is the TCP address of the DAP server
	Address string `json:"address"`

	// AttachTimeout bounds the attach handshake
	AttachTimeout time.Duration `json:"attachTimeout"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeFull,
		Records: RecordConfig{
			Root:   ".",
			Suffix: ".jdbg",
			Watch:  true,
		},
		Adapter: AdapterConfig{
			Address:       "127.0.0.1:4711",
			AttachTimeout: 30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CanUseControlTools returns true if execution control tools are enabled
func (c *Config) CanUseControlTools() bool {
	return c.Mode == ModeFull
}
