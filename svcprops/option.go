package svcprops

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultMaxServerEntries = 500
	defaultMaxQuicEntries   = 5
	defaultWriteDelay       = time.Minute
)

type config struct {
	clk               clock.Clock
	suffixes          []string
	maxServerEntries  int
	maxQuicEntries    int
	maxRecentlyBroken int
	storage           Storage
	writeDelay        time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clk:              clock.New(),
		suffixes:         DefaultCanonicalSuffixes,
		maxServerEntries: defaultMaxServerEntries,
		maxQuicEntries:   defaultMaxQuicEntries,
		writeDelay:       defaultWriteDelay,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClock sets the time source used for expirations, quarantine
// timers and write scheduling. Tests pass a mock clock.
func WithClock(clk clock.Clock) Option {
	return func(cfg *config) error {
		if clk != nil {
			cfg.clk = clk
		}
		return nil
	}
}

// WithCanonicalSuffixes sets the ordered list of domain suffixes whose
// hosts share learned alternative-service data.
//
// Default is DefaultCanonicalSuffixes.
func WithCanonicalSuffixes(suffixes []string) Option {
	return func(cfg *config) error {
		cfg.suffixes = suffixes
		return nil
	}
}

// WithMaxServerEntries sets the capacity of the per-origin caches
// (alternative services, HTTP/2 support, network stats). This capacity
// is fixed for the life of the cache.
//
// Default is 500.
func WithMaxServerEntries(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("max server entries must be positive, got %d", n)
		}
		cfg.maxServerEntries = n
		return nil
	}
}

// WithMaxQuicEntries sets the initial capacity of the QUIC server
// config cache. Unlike the other caches this one can be resized later
// with SetMaxQuicConfigsStored.
//
// Default is 5.
func WithMaxQuicEntries(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("max quic entries must be positive, got %d", n)
		}
		cfg.maxQuicEntries = n
		return nil
	}
}

// WithMaxRecentlyBroken bounds how many alternative services keep
// quarantine failure history.
//
// Default is brokensvc.DefaultMaxRecentEntries.
func WithMaxRecentlyBroken(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("max recently broken must be positive, got %d", n)
		}
		cfg.maxRecentlyBroken = n
		return nil
	}
}

// WithStorage enables persistence: the stored snapshot is loaded at
// construction and mutations schedule debounced snapshot writes.
func WithStorage(storage Storage) Option {
	return func(cfg *config) error {
		cfg.storage = storage
		return nil
	}
}

// WithWriteDelay sets how long mutations are batched before the
// snapshot is written. Only meaningful together with WithStorage.
//
// Default is one minute.
func WithWriteDelay(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return fmt.Errorf("write delay cannot be negative")
		}
		cfg.writeDelay = d
		return nil
	}
}
