package config

// DefaultConfig returns the bootstrap configuration for first-run: a
// local Redis instance on APPL_DB (logical database 0), a co-located
// hardware shim, the ROUTE_TABLE/NEIGH_TABLE pair the route reconciler
// needs (NEIGH_TABLE at the higher priority; the two tables belong to
// different orchestrators, so the priority does not make neighbor rows
// apply before route rows when both sources are ready), and the one
// default ECMP capacity heuristic.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{Addr: "127.0.0.1:6379", DB: 0},
		HardwareAPI: HardwareAPIConfig{
			Addr: "127.0.0.1:9559",
		},
		Tables: []TableConfig{
			{Name: "NEIGH_TABLE", Priority: 20},
			{Name: "ROUTE_TABLE", Priority: 10},
		},
		GroupSizeDivisorPlatforms: map[string]int{
			"mellanox": 32,
		},
		ManagementInterfaces: []string{"eth0", "lo", "docker0"},
		PollTimeoutMillis:     1000,
	}
}
