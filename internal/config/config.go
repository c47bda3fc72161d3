// Package config holds the plain, dependency-free configuration struct for
// the server and its defaults. No config-file parsing library is used here,
// matching the rest of this codebase's lineage.
package config

import "runtime"

type Config struct {
	DataDir string

	Network NetworkConfig
	Pool    PoolConfig
}

type NetworkConfig struct {
	ListenAddr   string
	MaxFrameSize int // bytes; spec bounds one request to 8192
	DebugMode    bool
}

type PoolConfig struct {
	WorkerCount int // fixed worker count for the thread pool (min 2)
	MaxConns    int // ants pool size bounding concurrent connection handlers
}

func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	return &Config{
		DataDir: "./data",
		Network: NetworkConfig{
			ListenAddr:   "127.0.0.1:7420",
			MaxFrameSize: 8192,
			DebugMode:    false,
		},
		Pool: PoolConfig{
			WorkerCount: workers,
			MaxConns:    256,
		},
	}
}
