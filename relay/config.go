// SPDX-License-Identifier: ice License 1.0

package relay

import (
	"time"
)

// Config carries the transport tunables. Zero values fall back to the
// defaults below so a missing yaml section still yields a working pool.
type Config struct {
	ConnectTimeout  time.Duration `mapstructure:"connectTimeout" yaml:"connectTimeout"`
	PingInterval    time.Duration `mapstructure:"pingInterval" yaml:"pingInterval"`
	RetryInterval   time.Duration `mapstructure:"retryInterval" yaml:"retryInterval"`
	DispatchTimeout time.Duration `mapstructure:"dispatchTimeout" yaml:"dispatchTimeout"`
	DedupCacheSize  int           `mapstructure:"dedupCacheSize" yaml:"dedupCacheSize"`
}

func (c *Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 10 * time.Second
	}

	return c.ConnectTimeout
}

func (c *Config) pingInterval() time.Duration {
	if c.PingInterval <= 0 {
		return 30 * time.Second
	}

	return c.PingInterval
}

func (c *Config) retryInterval() time.Duration {
	if c.RetryInterval <= 0 {
		return 5 * time.Second
	}

	return c.RetryInterval
}

func (c *Config) dispatchTimeout() time.Duration {
	if c.DispatchTimeout <= 0 {
		return 30 * time.Second
	}

	return c.DispatchTimeout
}
