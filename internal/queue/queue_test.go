package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueRejectsWhenFull(t *testing.T) {
	q := NewMemory(1)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Job{SubmissionID: uuid.New()}))
	require.ErrorIs(t, q.Publish(ctx, Job{SubmissionID: uuid.New()}), ErrQueueFull)
	require.Equal(t, 1, q.Len())

	require.NoError(t, q.Close())
	require.ErrorIs(t, q.Publish(ctx, Job{SubmissionID: uuid.New()}), ErrQueueClosed)
}

func TestJobEncodingRoundTrip(t *testing.T) {
	job := Job{SubmissionID: uuid.New(), StorageHandle: "submissions/2026/10/a.mp4", ContentType: "video/mp4", Attempt: 1}
	payload, err := encodeJob(job)
	require.NoError(t, err)

	decoded, err := decodeJob(payload)
	require.NoError(t, err)
	require.Equal(t, job.SubmissionID, decoded.SubmissionID)
	require.Equal(t, job.StorageHandle, decoded.StorageHandle)
	require.False(t, decoded.EnqueuedAt.IsZero())

	_, err = encodeJob(Job{})
	require.Error(t, err)
	_, err = decodeJob([]byte(`{"storage_handle":"x"}`))
	require.Error(t, err)
}

func TestPoolProcessesJobsConcurrently(t *testing.T) {
	q := NewMemory(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[uuid.UUID]bool{}
	done := make(chan struct{})
	const total = 8

	pool := NewPool(q, func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.SubmissionID] = true
		if len(seen) == total {
			close(done)
		}
		return nil
	}, PoolConfig{Concurrency: 3}, zerolog.Nop())

	for i := 0; i < total; i++ {
		require.NoError(t, q.Publish(ctx, Job{SubmissionID: uuid.New()}))
	}

	stopped := make(chan error, 1)
	go func() { stopped <- pool.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not processed")
	}

	cancel()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPoolRequeuesUntilMaxAttempts(t *testing.T) {
	q := NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := []int{}
	finished := make(chan struct{})

	pool := NewPool(q, func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, job.Attempt)
		if len(attempts) == 3 {
			close(finished)
		}
		return errors.New("database unavailable")
	}, PoolConfig{Concurrency: 1, MaxAttempts: 3}, zerolog.Nop())

	require.NoError(t, q.Publish(ctx, Job{SubmissionID: uuid.New()}))
	go func() { _ = pool.Run(ctx) }()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2}, attempts)
	require.Equal(t, 0, q.Len())
}
