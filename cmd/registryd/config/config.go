package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr      = "127.0.0.1:8545"
	DefaultEventBuffer     = 256
	DefaultShutdownTimeout = 5 * time.Second
)

// RegistryConfig describes one hosted registry.
type RegistryConfig struct {
	Name       string         `yaml:"name"`
	Address    common.Address `yaml:"address"`
	Controller common.Address `yaml:"controller"`
}

// DaemonConfig is the registryd configuration file.
type DaemonConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr serves /metrics on a separate listener. Empty serves it next to the RPC
	// endpoints.
	MetricsAddr     string           `yaml:"metrics_addr"`
	MaxCallDepth    int              `yaml:"max_call_depth"`
	EventBuffer     uint             `yaml:"event_buffer"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	LogLevel        string           `yaml:"log_level"`
	Registries      []RegistryConfig `yaml:"registries"`
}

// LoadConfig reads a configuration file from the given path, unmarshals it into a
// DaemonConfig struct, fills in defaults and validates it.
func LoadConfig(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg DaemonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *DaemonConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *DaemonConfig) validate() error {
	if c.MaxCallDepth < 0 {
		return errors.New("config: max_call_depth must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if len(c.Registries) == 0 {
		return errors.New("config: at least one registry is required")
	}
	seen := make(map[common.Address]string, len(c.Registries))
	for i, r := range c.Registries {
		if r.Name == "" {
			return fmt.Errorf("config: registries[%d]: name is required", i)
		}
		if r.Address == (common.Address{}) {
			return fmt.Errorf("config: registry %q: address is required", r.Name)
		}
		if r.Controller == (common.Address{}) {
			return fmt.Errorf("config: registry %q: controller is required", r.Name)
		}
		if other, ok := seen[r.Address]; ok {
			return fmt.Errorf("config: registries %q and %q share address %s", other, r.Name, r.Address.Hex())
		}
		seen[r.Address] = r.Name
	}
	return nil
}

// Level parses LogLevel.
func (c *DaemonConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return level, nil
}
