// Package config centralises runtime configuration for the feed handler
// binaries.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DBSettings addresses one server-backed SQL sink.
type DBSettings struct {
	// Dest is "user:pwd@host:port".
	Dest   string
	Schema string
}

// KVSettings addresses the key-value sink shared with the candle and chart
// workers.
type KVSettings struct {
	Addr string
	DB   int
}

// SinkSettings selects the destinations the ingest path writes to. Zero
// values mean the sink is not used; at least one must be set.
type SinkSettings struct {
	SQLitePath      string
	MySQL           DBSettings
	Postgres        DBSettings
	CSVDir          string
	KDB             string
	SocketPublisher string
	KV              KVSettings
}

// Any reports whether at least one sink destination is configured.
func (s SinkSettings) Any() bool {
	return s.SQLitePath != "" ||
		s.MySQL.Dest != "" ||
		s.Postgres.Dest != "" ||
		s.CSVDir != "" ||
		s.KDB != "" ||
		s.SocketPublisher != "" ||
		s.KV.Addr != ""
}

// Settings is the configuration tree loaded from defaults, environment, and
// flags.
type Settings struct {
	Subscriptions   string
	UseExchangeTime bool
	Proxy           string
	LogPath         string
	EndpointsFile   string
	Sinks           SinkSettings
}

// Default returns the default configuration.
func Default() Settings {
	return Settings{
		Subscriptions: "subscriptions.ini",
	}
}

// FromEnv loads configuration values from environment variables, overriding
// defaults. Flags override both.
func FromEnv() Settings {
	cfg := Default()
	if v := strings.TrimSpace(os.Getenv("BEFH_SUBSCRIPTIONS")); v != "" {
		cfg.Subscriptions = v
	}
	if v := strings.TrimSpace(os.Getenv("BEFH_PROXY")); v != "" {
		cfg.Proxy = v
	}
	if v := strings.TrimSpace(os.Getenv("BEFH_ENDPOINTS")); v != "" {
		cfg.EndpointsFile = v
	}
	return cfg
}

type endpointsFile struct {
	Venues map[string]string `yaml:"venues"`
}

// LoadEndpoints reads the optional venue endpoint override file. An empty
// path yields no overrides.
func LoadEndpoints(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file endpointsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	overrides := make(map[string]string, len(file.Venues))
	for venue, url := range file.Venues {
		venue = strings.ToLower(strings.TrimSpace(venue))
		url = strings.TrimSpace(url)
		if venue == "" || url == "" {
			continue
		}
		overrides[venue] = url
	}
	return overrides, nil
}
