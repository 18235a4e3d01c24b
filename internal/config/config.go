// Package config holds the tunables spec.md leaves to "implementation's
// discretion": buffer sizing, timeouts, and intervals. Each is read from
// an SESH_-prefixed environment variable, falling back to the documented
// default when unset or unparsable.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects the host's runtime tunables.
type Config struct {
	RingBufferCapacity  int
	IdleTimeout         time.Duration
	HandshakeWindow     time.Duration
	MetadataFlushPeriod time.Duration
	MetricsPeriod       time.Duration
	GzipThreshold       int
	SpawnPollDeadline   time.Duration
}

// Default returns the spec-documented defaults.
func Default() Config {
	return Config{
		RingBufferCapacity:  10 * 1024 * 1024,
		IdleTimeout:         60 * time.Second,
		HandshakeWindow:     100 * time.Millisecond,
		MetadataFlushPeriod: 5 * time.Second,
		MetricsPeriod:       5 * time.Second,
		GzipThreshold:       64 * 1024,
		SpawnPollDeadline:   3 * time.Second,
	}
}

// FromEnv overlays environment overrides onto Default.
func FromEnv() Config {
	c := Default()
	c.RingBufferCapacity = envInt("SESH_RING_BUFFER_CAPACITY", c.RingBufferCapacity)
	c.IdleTimeout = envDuration("SESH_IDLE_TIMEOUT", c.IdleTimeout)
	c.HandshakeWindow = envDuration("SESH_HANDSHAKE_WINDOW", c.HandshakeWindow)
	c.MetadataFlushPeriod = envDuration("SESH_METADATA_FLUSH_PERIOD", c.MetadataFlushPeriod)
	c.MetricsPeriod = envDuration("SESH_METRICS_PERIOD", c.MetricsPeriod)
	c.GzipThreshold = envInt("SESH_GZIP_THRESHOLD", c.GzipThreshold)
	c.SpawnPollDeadline = envDuration("SESH_SPAWN_POLL_DEADLINE", c.SpawnPollDeadline)
	return c
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
