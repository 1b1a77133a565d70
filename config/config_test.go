package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"BOOTSTRAP_NODE", "LISTEN_PORT", "HTTP_PORT", "OBJECT_STORE_ENDPOINT",
		"HASH_WIDTH_M", "SUCCESSOR_LIST_R", "T_STABILIZE_MS", "T_FIX_FINGERS_MS", "WORKER_POOL_SIZE"} {
		require.NoError(t, os.Unsetenv(name))
	}

	cfg := Load()
	require.Equal(t, "", cfg.BootstrapNode)
	require.Equal(t, 6501, cfg.ListenPort)
	require.Equal(t, 8001, cfg.HTTPPort)
	require.Equal(t, 20, cfg.Node.HashWidthBytes)
	require.Equal(t, 4, cfg.Node.SuccessorListSize)
	require.Equal(t, time.Second, cfg.Node.StabilizeInterval)
	require.Equal(t, 500*time.Millisecond, cfg.Node.FixFingerInterval)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("BOOTSTRAP_NODE", "10.0.0.1:6501")
	t.Setenv("LISTEN_PORT", "7000")
	t.Setenv("HASH_WIDTH_M", "32")
	t.Setenv("SUCCESSOR_LIST_R", "8")
	t.Setenv("T_STABILIZE_MS", "250")

	cfg := Load()
	require.Equal(t, "10.0.0.1:6501", cfg.BootstrapNode)
	require.Equal(t, 7000, cfg.ListenPort)
	require.Equal(t, 4, cfg.Node.HashWidthBytes) // 32 bits / 8
	require.Equal(t, 8, cfg.Node.SuccessorListSize)
	require.Equal(t, 250*time.Millisecond, cfg.Node.StabilizeInterval)
}
