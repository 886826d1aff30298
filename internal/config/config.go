// Package config loads daemon settings from an optional YAML file.
// Missing file or missing keys fall back to defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	TCPAddr         string        `yaml:"tcp_addr"`
	HTTPAddr        string        `yaml:"http_addr"`
	HTTPEnabled     bool          `yaml:"http_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Bank struct {
	BlockTimeout  time.Duration `yaml:"block_timeout"`
	GatherTimeout time.Duration `yaml:"gather_timeout"`
	MaxWait       time.Duration `yaml:"max_wait"`
}

type Telemetry struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Bank      Bank      `yaml:"bank"`
	Telemetry Telemetry `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		Server: Server{
			TCPAddr:         ":4545",
			HTTPAddr:        ":8080",
			HTTPEnabled:     false,
			ShutdownTimeout: 5 * time.Second,
		},
		Bank: Bank{
			BlockTimeout:  30 * time.Second,
			GatherTimeout: 10 * time.Second,
			MaxWait:       15 * time.Minute,
		},
		Telemetry: Telemetry{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "blackboard",
			SampleRatio: 1,
		},
	}
}

// Load reads the file at path over the defaults. An empty path or a
// missing file yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(blob, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

// Save writes the configuration to path. Durations serialize as
// nanosecond integers.
func (c Config) Save(path string) error {
	blob, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.Server.TCPAddr == "" {
		return fmt.Errorf("server.tcp_addr must not be empty")
	}
	if c.Server.HTTPEnabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr must not be empty when http is enabled")
	}
	if c.Bank.MaxWait <= 0 {
		return fmt.Errorf("bank.max_wait must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be in [0, 1]")
	}
	return nil
}
