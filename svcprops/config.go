package svcprops

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the externally configurable subset of cache settings.
// Zero fields keep their defaults.
type FileConfig struct {
	CanonicalSuffixes []string
	MaxServerEntries  int
	MaxQuicConfigs    int
	MaxRecentlyBroken int
	WriteDelay        time.Duration
}

// LoadFileConfig reads a YAML settings file:
//
//	canonical_suffixes:
//	  - .ggpht.com
//	  - .googlevideo.com
//	max_server_entries: 500
//	max_quic_configs: 5
//	max_recently_broken: 200
//	write_delay: 60s
func LoadFileConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	var raw struct {
		CanonicalSuffixes []string `yaml:"canonical_suffixes"`
		MaxServerEntries  int      `yaml:"max_server_entries"`
		MaxQuicConfigs    int      `yaml:"max_quic_configs"`
		MaxRecentlyBroken int      `yaml:"max_recently_broken"`
		WriteDelay        string   `yaml:"write_delay"`
	}
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return FileConfig{}, fmt.Errorf("cannot parse config %s: %s", path, err)
	}
	cfg := FileConfig{
		CanonicalSuffixes: raw.CanonicalSuffixes,
		MaxServerEntries:  raw.MaxServerEntries,
		MaxQuicConfigs:    raw.MaxQuicConfigs,
		MaxRecentlyBroken: raw.MaxRecentlyBroken,
	}
	if raw.WriteDelay != "" {
		cfg.WriteDelay, err = time.ParseDuration(raw.WriteDelay)
		if err != nil {
			return FileConfig{}, fmt.Errorf("cannot parse write_delay in %s: %s", path, err)
		}
	}
	return cfg, nil
}

// Options converts the configured settings into constructor options.
func (fc FileConfig) Options() []Option {
	var opts []Option
	if len(fc.CanonicalSuffixes) != 0 {
		opts = append(opts, WithCanonicalSuffixes(fc.CanonicalSuffixes))
	}
	if fc.MaxServerEntries != 0 {
		opts = append(opts, WithMaxServerEntries(fc.MaxServerEntries))
	}
	if fc.MaxQuicConfigs != 0 {
		opts = append(opts, WithMaxQuicEntries(fc.MaxQuicConfigs))
	}
	if fc.MaxRecentlyBroken != 0 {
		opts = append(opts, WithMaxRecentlyBroken(fc.MaxRecentlyBroken))
	}
	if fc.WriteDelay != 0 {
		opts = append(opts, WithWriteDelay(fc.WriteDelay))
	}
	return opts
}
