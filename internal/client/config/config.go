// Package config loads identityctl settings from defaults, an optional JSON
// file, IDENTITYCTL_* environment variables and command-line flags, later
// sources taking precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dmitrijs2005/identityd/internal/flagx"
)

var ErrInvalidServerURL = errors.New("server url must be an absolute http(s) url")

// Config holds runtime settings for the identityctl client.
type Config struct {
	// ServerURL is the base URL of the identityd HTTP listener.
	ServerURL string `env:"IDENTITYCTL_SERVER_URL"`
	// RequestTimeout bounds every API call.
	RequestTimeout time.Duration `env:"IDENTITYCTL_REQUEST_TIMEOUT"`
	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration `env:"IDENTITYCTL_ONLINE_CHECK_INTERVAL"`
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	if c.RequestTimeout <= 0 || c.OnlineCheckInterval <= 0 {
		return errors.New("timeouts and intervals must be positive")
	}
	return nil
}

// LoadConfig builds a validated Config from args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, flagx.ConfigFlag(args)); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}
