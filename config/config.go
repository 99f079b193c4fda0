// Package config loads bus definitions: which algorithm each adapter
// binds to and its transaction tunables. Definitions are validated
// before anything touches the registry, so a bad file fails loudly at
// start-up rather than at first use.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"smbus-go/errcode"
	"smbus-go/smbus"
)

// Config is the top-level document.
type Config struct {
	Buses []Bus `yaml:"buses"`
}

// Bus describes one adapter to create.
type Bus struct {
	Name      string `yaml:"name"`
	Algorithm string `yaml:"algorithm"`
	// TimeoutMS bounds one wire-level attempt. 0 picks the adapter
	// default.
	TimeoutMS int `yaml:"timeout_ms"`
	// Retries re-runs a timed-out or faulted attempt. -1 means 0;
	// 0 picks the adapter default.
	Retries    int `yaml:"retries"`
	MaxClients int `yaml:"max_clients"`
}

// Parse decodes and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "config.parse", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Validate checks the document for mistakes a registry would otherwise
// surface one at a time.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Name == "" {
			return &errcode.E{C: errcode.InvalidParams, Op: "config.validate", Msg: "bus with empty name"}
		}
		if b.Algorithm == "" {
			return &errcode.E{C: errcode.InvalidParams, Op: "config.validate",
				Msg: "bus " + b.Name + " names no algorithm"}
		}
		if seen[b.Name] {
			return &errcode.E{C: errcode.Duplicate, Op: "config.validate", Msg: b.Name}
		}
		seen[b.Name] = true
		if b.TimeoutMS < 0 || b.Retries < -1 || b.MaxClients < 0 {
			return &errcode.E{C: errcode.InvalidParams, Op: "config.validate",
				Msg: "bus " + b.Name + " has negative tunables"}
		}
	}
	return nil
}

// AdapterConfig translates a bus definition into adapter tunables.
// Zero fields fall through to the adapter defaults; Retries -1 pins
// retries to zero.
func (b *Bus) AdapterConfig() smbus.AdapterConfig {
	cfg := smbus.AdapterConfig{
		Timeout:    time.Duration(b.TimeoutMS) * time.Millisecond,
		MaxClients: b.MaxClients,
	}
	switch b.Retries {
	case 0:
		cfg.Retries = -1 // adapter default
	case -1:
		cfg.Retries = 0
	default:
		cfg.Retries = b.Retries
	}
	return cfg
}
