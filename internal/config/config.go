// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "15s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProcessConfig tunes the process collector.
type ProcessConfig struct {
	Interval        Duration `yaml:"interval"`
	CPUThreshold    float64  `yaml:"cpu_threshold"`
	MemoryThreshold float64  `yaml:"memory_threshold"`
}

// NetworkConfig tunes the network collector.
type NetworkConfig struct {
	Interval Duration `yaml:"interval"`
}

// FileConfig tunes the file collector.
type FileConfig struct {
	Interval   Duration `yaml:"interval"`
	WatchPaths []string `yaml:"watch_paths"`
}

// SystemConfig tunes the system-health collector.
type SystemConfig struct {
	Interval Duration `yaml:"interval"`
}

// Config is the full agent configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
	LogLevel   string `yaml:"log_level"`

	Process ProcessConfig `yaml:"process"`
	Network NetworkConfig `yaml:"network"`
	File    FileConfig    `yaml:"file"`
	System  SystemConfig  `yaml:"system"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr: ":8844",
		DBPath:     "kestrel.db",
		LogLevel:   "info",
		Process: ProcessConfig{
			Interval:        Duration(10 * time.Second),
			CPUThreshold:    90.0,
			MemoryThreshold: 85.0,
		},
		Network: NetworkConfig{Interval: Duration(5 * time.Second)},
		File:    FileConfig{Interval: Duration(15 * time.Second)},
		System:  SystemConfig{Interval: Duration(10 * time.Second)},
	}
}

// Load reads config from a YAML file with env overrides. Zero-valued
// fields fall back to the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Process.Interval <= 0 {
		cfg.Process.Interval = def.Process.Interval
	}
	if cfg.Process.CPUThreshold <= 0 {
		cfg.Process.CPUThreshold = def.Process.CPUThreshold
	}
	if cfg.Process.MemoryThreshold <= 0 {
		cfg.Process.MemoryThreshold = def.Process.MemoryThreshold
	}
	if cfg.Network.Interval <= 0 {
		cfg.Network.Interval = def.Network.Interval
	}
	if cfg.File.Interval <= 0 {
		cfg.File.Interval = def.File.Interval
	}
	if cfg.System.Interval <= 0 {
		cfg.System.Interval = def.System.Interval
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KESTREL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KESTREL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("KESTREL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
