package offlinecache

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the tunables for the tiered cache and the offline queue.
// Zero values fall back to the defaults at construction time.
type Config struct {
	// DefaultTTL applies to Set calls that pass a non-positive TTL.
	DefaultTTL time.Duration `env:"OFFCACHE_DEFAULT_TTL"`

	// MaxEntries is the hard ceiling on the memory tier's entry count.
	MaxEntries int `env:"OFFCACHE_MAX_ENTRIES"`

	// EvictionWatermark is the entry count eviction shrinks the memory
	// tier down to once MaxEntries is exceeded. Must be below
	// MaxEntries; defaults to 90% of it.
	EvictionWatermark int `env:"OFFCACHE_EVICTION_WATERMARK"`

	// SweepInterval is how often the background sweep scans the memory
	// tier for expired entries.
	SweepInterval time.Duration `env:"OFFCACHE_SWEEP_INTERVAL"`

	// QueueCapacity bounds the offline request queue.
	QueueCapacity int `env:"OFFCACHE_QUEUE_CAPACITY"`

	// QueueMaxRetries applies to enqueues that pass a negative retry
	// ceiling.
	QueueMaxRetries int `env:"OFFCACHE_QUEUE_MAX_RETRIES"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		DefaultTTL:        30 * time.Minute,
		MaxEntries:        256,
		SweepInterval:     5 * time.Minute,
		QueueCapacity:     100,
		QueueMaxRetries:   3,
		EvictionWatermark: 0, // derived from MaxEntries
	}
}

// ConfigFromEnv loads configuration from environment variables on top of
// the defaults.
func ConfigFromEnv() (Config, error) {
	c := DefaultConfig()
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.DefaultTTL <= 0 {
		c.DefaultTTL = d.DefaultTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = d.MaxEntries
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.QueueMaxRetries < 0 {
		c.QueueMaxRetries = d.QueueMaxRetries
	}
	if c.EvictionWatermark <= 0 || c.EvictionWatermark >= c.MaxEntries {
		c.EvictionWatermark = c.MaxEntries * 9 / 10
		if c.EvictionWatermark < 1 {
			c.EvictionWatermark = 1
		}
	}

	return c
}
