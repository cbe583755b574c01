// Package config loads the service configuration from a YAML or JSON
// file with optional environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/emsroute/ers/core/metrics"
	"github.com/emsroute/ers/infra/mqtt"
)

type Config struct {
	Server  ServerConfig   `json:"server"`
	Routing RoutingConfig  `json:"routing"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Metrics metrics.Config `json:"metrics"`
	Data    DataConfig     `json:"data"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Address string `json:"address"`
	// CORSOrigins lists the allowed origins. Empty means allow all.
	CORSOrigins []string `json:"cors_origins"`
}

// RoutingConfig tunes the traffic overlay and the movement simulator.
type RoutingConfig struct {
	// PeakHours are the wall-clock hours during which congestion
	// adjustments apply. Empty selects the default rush-hour set.
	PeakHours []int `json:"peak_hours"`
	// TickMilliseconds is the real-time duration of one simulated
	// second of ambulance movement.
	TickMilliseconds int `json:"tick_milliseconds"`
}

// DataConfig points at the seed dataset loaded on startup.
type DataConfig struct {
	SeedPath string `json:"seed_path"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

func (c *RoutingConfig) SetDefaults() {
	if c.TickMilliseconds == 0 {
		c.TickMilliseconds = 1000
	}
}

func (c RoutingConfig) Validate() error {
	if c.TickMilliseconds < 0 {
		return fmt.Errorf("tick_milliseconds must be positive")
	}
	for _, h := range c.PeakHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("peak hour %d out of range", h)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("ERS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ers_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Routing.SetDefaults()
	if err := cfg.Routing.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
