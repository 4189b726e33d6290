// Package config loads the ledger's runtime configuration from a YAML
// file with environment-variable expansion, grounded in the pattern
// index-plane-transformer's config.go uses (read file, os.ExpandEnv,
// yaml.Unmarshal, then fill in defaults).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Reports ReportsConfig `yaml:"reports"`
}

// ServerConfig holds the HTTP listen settings (external
// interface).
type ServerConfig struct {
	Addr string `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds the bbolt database path.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ReportsConfig holds the directory EOD Job 7 writes
// TrialBalance_*.csv / BalanceSheet_*.xlsx under.
type ReportsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Load reads path, expands ${VAR}-style environment references, parses
// the YAML, and fills in defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "corebank.db"
	}
	if cfg.Reports.OutputDir == "" {
		cfg.Reports.OutputDir = "reports"
	}

	return &cfg, nil
}
