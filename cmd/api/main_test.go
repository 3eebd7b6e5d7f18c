package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artdirector-api/internal/config"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand(zerolog.Nop())

	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	require.ElementsMatch(t, []string{"serve", "worker", "sweep", "migrate"}, names)
}

func TestBackendFactoriesRejectUnknownValues(t *testing.T) {
	ctx := context.Background()
	app := &application{}

	_, err := newStore(ctx, config.Config{StorageBackend: "ftp"}, zerolog.Nop(), app)
	require.Error(t, err)

	_, err = newQueue(config.Config{QueueBackend: "kafka"}, zerolog.Nop(), app)
	require.Error(t, err)

	_, err = newProvider(ctx, config.Config{AIProvider: "llama"}, zerolog.Nop())
	require.Error(t, err)
}

func TestMemoryBackends(t *testing.T) {
	app := &application{}

	store, err := newStore(context.Background(), config.Config{StorageBackend: "memory"}, zerolog.Nop(), app)
	require.NoError(t, err)
	require.NotNil(t, store)

	jobs, err := newQueue(config.Config{QueueBackend: "memory", QueueBuffer: 4}, zerolog.Nop(), app)
	require.NoError(t, err)
	require.Equal(t, "memory", jobs.Backend())
	require.Len(t, app.closers, 1)
	app.Close()
}

func TestGCSStoreRegistersCloser(t *testing.T) {
	// The emulator host switches the client to unauthenticated mode so no credentials are needed.
	t.Setenv("STORAGE_EMULATOR_HOST", "127.0.0.1:4443")
	app := &application{}

	store, err := newStore(context.Background(), config.Config{StorageBackend: "gcs", GCSBucket: "artifacts"}, zerolog.Nop(), app)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Len(t, app.closers, 1)
	app.Close()
}

func TestBootstrapSweepOnlyWithSQLite(t *testing.T) {
	cfg := config.Config{DatabaseDriver: "sqlite", DatabaseURL: "file:bootstrap_test?mode=memory&cache=shared"}

	app, err := bootstrap(context.Background(), cfg, zerolog.Nop(), false)
	require.NoError(t, err)
	defer app.Close()

	require.Nil(t, app.pool)
	count, err := app.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}
