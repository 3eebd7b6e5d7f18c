package grading

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/internal/repository"
)

func TestSweeperRunOnceUsesStaleCutoff(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewSubmissionRepository(db)
	publisher := &recordingPublisher{}
	lc := NewLifecycle(repo, publisher, zerolog.Nop())
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := models.Submission{OwnerID: "u", Title: "Old", StorageHandle: "h1", Status: models.SubmissionStatusPending, CreatedAt: now.Add(-20 * time.Minute)}
	recent := models.Submission{OwnerID: "u", Title: "Recent", StorageHandle: "h2", Status: models.SubmissionStatusPending, CreatedAt: now.Add(-5 * time.Minute)}
	require.NoError(t, repo.Create(ctx, &old))
	require.NoError(t, repo.Create(ctx, &recent))

	sweeper := NewSweeper(lc, time.Minute, 15*time.Minute, zerolog.Nop())
	sweeper.now = func() time.Time { return now }

	count, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	stored, err := repo.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, stored.Status)
	require.Len(t, publisher.Events(), 1)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	db := setupTestDB(t)
	lc := NewLifecycle(repository.NewSubmissionRepository(db), nil, zerolog.Nop())
	sweeper := NewSweeper(lc, 10*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
