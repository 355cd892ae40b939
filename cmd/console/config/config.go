package config

import (
	"errors"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const DefaultRPCURL = "ws://127.0.0.1:8545/ws"

// ConsoleConfig is the console configuration file.
type ConsoleConfig struct {
	RPCURL string `yaml:"rpc_url"`
	// Sender is the address mutating commands act as. Zero disables them.
	Sender common.Address `yaml:"sender"`
}

// LoadConfig reads a configuration file from the given path and validates it.
func LoadConfig(path string) (*ConsoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ConsoleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the event stream can be reached over a websocket.
func (c *ConsoleConfig) Validate() error {
	if c.RPCURL == "" {
		return errors.New("config: rpc_url is required")
	}
	if !strings.HasPrefix(c.RPCURL, "ws://") && !strings.HasPrefix(c.RPCURL, "wss://") {
		return errors.New("config: rpc_url must be a websocket endpoint")
	}
	return nil
}
