// Package config loads the process-wide configuration of spec §6's
// "Configuration" table from environment variables, and assembles it into
// the per-layer Config structs node and job already define.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ringjobs/ringjobs/job"
	"github.com/ringjobs/ringjobs/node"
)

// Config is the top-level process configuration: spec §6's table plus the
// HTTP listen port, composed from the layer-specific Config structs rather
// than duplicating their fields.
type Config struct {
	// BootstrapNode is host:port of an existing ring member to join.
	// Empty means "form a new ring" (spec §6).
	BootstrapNode string

	// ListenPort is the peer RPC port (spec §6 default 6501).
	ListenPort int

	// HTTPPort is the HTTP API port (spec §6 default 8001).
	HTTPPort int

	// ObjectStoreEndpoint is the object-store adapter's address, read from
	// OBJECT_STORE_ENDPOINT. cmd/dhtnode does not use it: it always wires
	// an in-memory objectstore.Fake.
	ObjectStoreEndpoint string

	Node node.Config
	Job  job.Config
}

// Load reads every recognized environment variable, falling back to spec
// §6's documented defaults for anything unset, mirroring the teacher's
// nodeDefaultConf but sourced from the environment instead of hardcoded.
func Load() Config {
	node := node.DefaultConfig()
	node.HashWidthBytes = envInt("HASH_WIDTH_M", 160) / 8
	node.SuccessorListSize = envInt("SUCCESSOR_LIST_R", 4)
	node.StabilizeInterval = envDuration("T_STABILIZE_MS", time.Second)
	node.FixFingerInterval = envDuration("T_FIX_FINGERS_MS", 500*time.Millisecond)

	jobCfg := job.DefaultConfig()
	jobCfg.WorkerPoolSize = envInt("WORKER_POOL_SIZE", jobCfg.WorkerPoolSize)

	return Config{
		BootstrapNode:       os.Getenv("BOOTSTRAP_NODE"),
		ListenPort:          envInt("LISTEN_PORT", 6501),
		HTTPPort:            envInt("HTTP_PORT", 8001),
		ObjectStoreEndpoint: os.Getenv("OBJECT_STORE_ENDPOINT"),
		Node:                node,
		Job:                 jobCfg,
	}
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
