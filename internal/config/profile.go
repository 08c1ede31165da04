package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Profile is the portable subset of a .gram/config.yaml worth handing to
// another machine: the relay endpoint and polling cadence, without the
// local db path or actor identity. Exported/imported as TOML so it reads
// as a small, human-editable snippet rather than a YAML fragment.
type Profile struct {
	BroadcastRelay        string `toml:"broadcast_relay" yaml:"broadcast-relay"`
	BroadcastPollInterval string `toml:"broadcast_poll_interval" yaml:"broadcast-poll-interval"`
}

// CurrentProfile reads the profile fields out of the active configuration.
func CurrentProfile() Profile {
	return Profile{
		BroadcastRelay:        GetString("broadcast.relay"),
		BroadcastPollInterval: GetString("broadcast.poll-interval"),
	}
}

// ExportProfileTOML encodes p as a TOML document, for `gram config
// export-profile`.
func ExportProfileTOML(p Profile) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("config: encode profile: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportProfileTOML decodes a profile previously written by
// ExportProfileTOML and applies it to the active configuration.
func ImportProfileTOML(data []byte) (Profile, error) {
	var p Profile
	if _, err := toml.Decode(string(data), &p); err != nil {
		return Profile{}, fmt.Errorf("config: decode profile: %w", err)
	}
	if p.BroadcastRelay != "" {
		Set("broadcast.relay", p.BroadcastRelay)
	}
	if p.BroadcastPollInterval != "" {
		Set("broadcast.poll-interval", p.BroadcastPollInterval)
	}
	return p, nil
}

// localYAML mirrors the handful of config.yaml fields WriteDefaultFile
// writes; keys outside this set are not preserved.
type localYAML struct {
	Db               string  `yaml:"db,omitempty"`
	Actor            string  `yaml:"actor,omitempty"`
	LockTimeout      string  `yaml:"lock-timeout,omitempty"`
	BroadcastRelay   string  `yaml:"broadcast.relay,omitempty"`
	BroadcastPoll    string  `yaml:"broadcast.poll-interval,omitempty"`
	CompactIdleAfter string  `yaml:"compact.idle-after,omitempty"`
	SearchMinScore   float64 `yaml:"search.min-score,omitempty"`
}

// WriteDefaultFile writes a starter .gram/config.yaml at path, for
// seeding a project that has none yet, replacing any file already there.
// Encoded with plain yaml.v3 rather than viper, so the config singleton
// is not reinitialized.
func WriteDefaultFile(path string) error {
	cfg := localYAML{LockTimeout: "30s", CompactIdleAfter: "10m", SearchMinScore: 0.3}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

// ReadFileDirect reads and parses a config.yaml at path without going
// through the viper singleton, for callers (like WriteDefaultFile's
// callers verifying a write) that want the raw file contents.
func ReadFileDirect(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var cfg localYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Profile{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return Profile{BroadcastRelay: cfg.BroadcastRelay, BroadcastPollInterval: cfg.BroadcastPoll}, nil
}
