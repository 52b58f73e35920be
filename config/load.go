package config

import (
	"fmt"

	log "go.arcalot.io/log/v2"
	"gopkg.in/yaml.v3"
)

// Load parses a YAML configuration document into a Config.
func Load(configData []byte) (*Config, error) {
	cfg := Default()
	if len(configData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(configData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration (%w)", err)
	}
	return cfg, nil
}

// Default returns the default configuration: info-level logging to stdout.
func Default() *Config {
	return &Config{
		Log: log.Config{
			Level:       log.LevelInfo,
			Destination: log.DestinationStdout,
		},
	}
}
