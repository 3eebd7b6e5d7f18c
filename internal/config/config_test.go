package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("ARTDIR_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "memory", cfg.QueueBackend)
	require.Equal(t, "gemini", cfg.AIProvider)
	require.Equal(t, 2*time.Second, cfg.Grading.PollInterval)
	require.Equal(t, 5*time.Minute, cfg.Grading.MaxWait)
	require.Equal(t, os.TempDir(), cfg.Grading.StagingDir)
	require.Equal(t, 4, cfg.WorkerConcurrency)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("ARTDIR_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("ARTDIR_JWT_SECRET", "secret")
	t.Setenv("ARTDIR_GRADING_MAX_WAIT", "forever")

	_, err := Load()
	require.ErrorContains(t, err, "grading.max_wait")
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("ARTDIR_JWT_SECRET", "secret")
	t.Setenv("ARTDIR_APP_PORT", ":9090")
	t.Setenv("ARTDIR_QUEUE_BACKEND", "NATS")
	t.Setenv("ARTDIR_WORKER_CONCURRENCY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "nats", cfg.QueueBackend)
	require.Equal(t, 4, cfg.WorkerConcurrency)
}
