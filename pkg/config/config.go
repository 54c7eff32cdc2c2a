// Package config loads the server configuration from a YAML file,
// CHATTERBOX_* environment variables and command line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults and limits
const (
	defaultAddress  = "0.0.0.0"
	defaultPort     = 8080
	defaultLivePort = 8081
	defaultDBPath   = "./.chatterbox"
	defaultLogLevel = "info"

	defaultQueueCapacity        = 64 * 1024
	defaultMaxPooledBufferBytes = 256 * 1024
	defaultDrainTimeout         = 10 * time.Second

	defaultMailboxSize  = 64
	defaultSendBuffer   = 256
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 5 * time.Second

	defaultFetchTimeout    = 10 * time.Second
	defaultDispatchTimeout = 10 * time.Second
	defaultInflightWait    = 5 * time.Second
	defaultHistoryLimit    = 200
	defaultMaxBodyBytes    = 4 * 1024

	defaultTickerCron = "* * * * *"
	defaultTickerTopN = 3

	defaultRateRPS   = 50
	defaultRateBurst = 100
)

// Default returns the configuration used when nothing overrides it. A
// config file is decoded on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Address: defaultAddress, Port: defaultPort, LivePort: defaultLivePort, DBPath: defaultDBPath},
		Logging: LoggingConfig{Level: defaultLogLevel},
		Ticker:  TickerConfig{Enabled: true, Cron: defaultTickerCron, TopN: defaultTickerTopN},
	}
}

// Addr returns the HTTP API address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LiveAddr returns the websocket listener address as host:port.
func (c *Config) LiveAddr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := c.Server.LivePort
	if port == 0 {
		port = defaultLivePort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LoadConfigFile decodes the file at path on top of base.
func LoadConfigFile(path string, base *Config) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATTERBOX_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
