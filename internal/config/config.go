// Package config provides configuration persistence for the reconciliation
// daemon.
//
// Config describes the desired shape of one netorchd process: which
// datastore tables it ingests, at what priority, which platform-specific
// ECMP capacity heuristics apply, and where the hardware-abstraction
// shim lives. Orchestration state itself (SyncedRoutes, NextHopGroup
// pool, PendingMap contents) is never persisted here — the datastore
// is the only source of truth for desired state, and this core stores
// no derived state beyond it.
//
// Store is not accessed on the reconciliation hot path (EventLoop.Run).
// The daemon reads it at startup (writing the bootstrap config if none
// exists) and re-reads it from config/file.Watcher whenever the file
// changes; the operator CLI reads and writes it.
package config

import "context"

// Store persists and loads daemon configuration.
type Store interface {
	// Load reads the configuration. Returns nil config if none exists.
	Load(ctx context.Context) (*Config, error)

	// Save persists the configuration.
	Save(ctx context.Context, cfg *Config) error
}

// Config describes the desired shape of a netorchd process.
type Config struct {
	// Redis is the datastore connection used by internal/statedb/rdb.
	Redis RedisConfig

	// HardwareAPI is the gRPC endpoint for the hardware-abstraction shim.
	HardwareAPI HardwareAPIConfig

	// Tables lists the datastore tables this instance ingests, with
	// their consumer priority. Priority orders the consumers owned by
	// one orchestrator (core.ConsumerGroup, higher first); it does not
	// order tables owned by different orchestrators, which the event
	// loop dispatches each as its source becomes ready.
	Tables []TableConfig

	// Platform is the platform identifier. When empty, the "platform"
	// environment variable is used at startup instead.
	Platform string

	// GroupSizeDivisorPlatforms maps a platform substring to the
	// divisor applied to the discovered ECMP group capacity (the
	// Mellanox/32 heuristic, generalized to N platforms).
	GroupSizeDivisorPlatforms map[string]int

	// ManagementInterfaces overrides the default {eth0, lo, docker0}
	// skip-list consulted by the route reconciler.
	ManagementInterfaces []string

	// PollTimeoutMillis is the event loop's multiplexer wait timeout.
	// Defaults to 1000 when zero.
	PollTimeoutMillis int
}

// RedisConfig configures the datastore connection.
type RedisConfig struct {
	Addr string
	DB   int
}

// HardwareAPIConfig configures the hardware-abstraction gRPC client.
type HardwareAPIConfig struct {
	Addr string
}

// TableConfig names one datastore table and its consumer priority.
type TableConfig struct {
	Name     string
	Priority int
}
