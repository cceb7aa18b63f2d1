// Package server implements the schedgraph HTTP API.
//
// This file defines the Go structs that correspond to the YAML server
// configuration. Strict decoding (KnownFields) is used so typos in the file
// fail loudly instead of being silently ignored.

package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure of the server configuration file.
// Every field has a usable zero-value default, so an empty path is fine.
// Durations are strings ("30s", "5m") parsed with time.ParseDuration.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	AuthToken     string `yaml:"auth_token"`
	DataDir       string `yaml:"data_dir"`
	Persistence   *bool  `yaml:"persistence"`
	FlushInterval string `yaml:"flush_interval"`
}

// PersistenceEnabled resolves the optional persistence toggle; persistence is
// on unless the file explicitly disables it.
func (c *Config) PersistenceEnabled() bool {
	if c.Persistence == nil {
		return true
	}
	return *c.Persistence
}

// FlushIntervalDuration parses the configured flush interval. Zero means
// "use the store default".
func (c *Config) FlushIntervalDuration() (time.Duration, error) {
	if c.FlushInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.FlushInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid flush_interval '%s': %w", c.FlushInterval, err)
	}
	return d, nil
}

// LoadConfig reads and parses the YAML configuration file from the given
// path. Environment variables in the file are expanded, so secrets like the
// auth token can live outside it.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	expandedData := os.ExpandEnv(string(data))

	var config Config
	decoder := yaml.NewDecoder(strings.NewReader(expandedData))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}

	return &config, nil
}
