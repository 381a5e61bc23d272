package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hollowline/rdt/rdt"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a config file loaded with --config; it
// mirrors rdt.Config plus the daemon's own listen/metrics settings.
type fileConfig struct {
	Listen       string `yaml:"listen"`
	MetricsAddr  string `yaml:"metrics_addr"`
	Window       int    `yaml:"window"`
	TimerMillis  int    `yaml:"timer_ms"`
	TimeoutMilli int    `yaml:"timeout_ms"`

	// TCPListen, if set, accepts local TCP connections and bridges each one
	// through a reliable session opened to Peer, so a user can `nc` the
	// reliable link end to end. Both empty disables the bridge.
	TCPListen string `yaml:"tcp_listen"`
	Peer      string `yaml:"peer"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Listen:       "0.0.0.0:9710",
		MetricsAddr:  "127.0.0.1:9711",
		Window:       16,
		TimerMillis:  50,
		TimeoutMilli: 400,
	}
}

func loadFileConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rdtd: reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("rdtd: parsing config: %w", err)
	}
	return cfg, nil
}

func (c fileConfig) protocolConfig() rdt.Config {
	return rdt.Config{
		Window:  c.Window,
		Timer:   time.Duration(c.TimerMillis) * time.Millisecond,
		Timeout: time.Duration(c.TimeoutMilli) * time.Millisecond,
	}
}
