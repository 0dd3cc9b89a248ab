package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snapfetch/snapfetch/fetch"
)

// fileConfig is the YAML configuration accepted via --config. Every field has
// a flag or default, so the file is optional.
type fileConfig struct {
	// Dir is the cache directory for the filesystem store.
	Dir string `yaml:"dir"`
	// Name scopes snapshots, lock and logs to one cache.
	Name string `yaml:"name"`
	// Frequency is a staleness policy name ("daily", "hourly", ...) or a
	// duration string ("90m", "1d12h").
	Frequency string `yaml:"frequency"`
	// Redis switches storage to Redis when set (e.g. "redis://localhost:6379").
	Redis string `yaml:"redis"`
	// Wait forces synchronous refreshes.
	Wait bool `yaml:"wait"`
}

func defaultConfig() *fileConfig {
	return &fileConfig{
		Dir:       fetch.DefaultDir,
		Name:      fetch.DefaultName,
		Frequency: "daily",
	}
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.Dir == "" {
		cfg.Dir = fetch.DefaultDir
	}
	if cfg.Name == "" {
		cfg.Name = fetch.DefaultName
	}
	if cfg.Frequency == "" {
		cfg.Frequency = "daily"
	}
	return cfg, nil
}
