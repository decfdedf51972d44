package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkbrennan/partyquiz/internal/transport"
)

// Config is the YAML configuration for the client engine.
type Config struct {
	Server struct {
		APIBaseURL string `yaml:"api_base_url"`
		WSBaseURL  string `yaml:"ws_base_url"`
		BridgeAddr string `yaml:"bridge_addr"`
	} `yaml:"server"`
	Transport struct {
		BackoffBase       string `yaml:"backoff_base"`
		BackoffCap        string `yaml:"backoff_cap"`
		MaxAttempts       int    `yaml:"max_attempts"`
		HeartbeatInterval string `yaml:"heartbeat_interval"`
		DialTimeout       string `yaml:"dial_timeout"`
	} `yaml:"transport"`
	Poller struct {
		Interval        string `yaml:"interval"`
		SnapshotTimeout string `yaml:"snapshot_timeout"`
	} `yaml:"poller"`
	Gate struct {
		Grace string `yaml:"grace"`
	} `yaml:"gate"`
	Reconcile struct {
		TrustEmptyRoster bool `yaml:"trust_empty_roster"`
	} `yaml:"reconcile"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// TransportConfig maps the YAML section onto the transport defaults.
func (c Config) TransportConfig() transport.Config {
	tc := transport.DefaultConfig()
	tc.BackoffBase = Duration(c.Transport.BackoffBase, tc.BackoffBase)
	tc.BackoffCap = Duration(c.Transport.BackoffCap, tc.BackoffCap)
	if c.Transport.MaxAttempts > 0 {
		tc.MaxAttempts = c.Transport.MaxAttempts
	}
	tc.HeartbeatInterval = Duration(c.Transport.HeartbeatInterval, tc.HeartbeatInterval)
	tc.DialTimeout = Duration(c.Transport.DialTimeout, tc.DialTimeout)
	return tc
}
