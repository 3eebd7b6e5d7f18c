package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/grading"
	"github.com/noah-isme/artdirector-api/internal/models"
)

func receive(ch <-chan grading.StatusEvent, wait time.Duration) (grading.StatusEvent, bool) {
	select {
	case event := <-ch:
		return event, true
	case <-time.After(wait):
		return grading.StatusEvent{}, false
	}
}

func TestStatusBrokerRoutesToOwnerAndReviewer(t *testing.T) {
	broker := NewStatusBroker(nil, "", zerolog.Nop())

	ownerCh, closeOwner := broker.Subscribe(dto.Identity{Subject: "user-1"})
	defer closeOwner()
	reviewerCh, closeReviewer := broker.Subscribe(dto.Identity{Subject: "user-2", Email: "Mentor@Example.com"})
	defer closeReviewer()
	strangerCh, closeStranger := broker.Subscribe(dto.Identity{Subject: "user-3"})
	defer closeStranger()

	event := grading.StatusEvent{SubmissionID: uuid.New(), OwnerID: "user-1", ReviewerKey: "mentor@example.com", Status: models.SubmissionStatusGraded}
	broker.PublishStatus(context.Background(), event)

	got, ok := receive(ownerCh, time.Second)
	require.True(t, ok)
	require.Equal(t, event.SubmissionID, got.SubmissionID)

	_, ok = receive(reviewerCh, time.Second)
	require.True(t, ok)

	_, ok = receive(strangerCh, 50*time.Millisecond)
	require.False(t, ok)

	closeOwner()
	closeOwner()
	_, open := <-ownerCh
	require.False(t, open)
}

func TestStatusBrokerRelaysThroughRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewStatusBroker(clientA, "artdirector", zerolog.Nop())
	api := NewStatusBroker(clientB, "artdirector", zerolog.Nop())
	api.Start(ctx)

	events, unsubscribe := api.Subscribe(dto.Identity{Subject: "user-1"})
	defer unsubscribe()

	event := grading.StatusEvent{SubmissionID: uuid.New(), OwnerID: "user-1", Status: models.SubmissionStatusFailed, FailureReason: grading.ReasonPanic}
	require.Eventually(t, func() bool {
		worker.PublishStatus(ctx, event)
		got, ok := receive(events, 20*time.Millisecond)
		return ok && got.SubmissionID == event.SubmissionID && got.FailureReason == grading.ReasonPanic
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusBrokerResubscribesAfterRedisRestart(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewStatusBroker(clientA, "artdirector", zerolog.Nop())
	api := NewStatusBroker(clientB, "artdirector", zerolog.Nop())
	api.(*statusBroker).resubscribeMin = 5 * time.Millisecond
	api.(*statusBroker).resubscribeMax = 20 * time.Millisecond
	api.Start(ctx)

	events, unsubscribe := api.Subscribe(dto.Identity{Subject: "user-1"})
	defer unsubscribe()

	relayed := func(event grading.StatusEvent) func() bool {
		return func() bool {
			worker.PublishStatus(ctx, event)
			got, ok := receive(events, 20*time.Millisecond)
			return ok && got.SubmissionID == event.SubmissionID
		}
	}

	before := grading.StatusEvent{SubmissionID: uuid.New(), OwnerID: "user-1", Status: models.SubmissionStatusGraded}
	require.Eventually(t, relayed(before), 2*time.Second, 10*time.Millisecond)

	server.Close()
	require.NoError(t, server.Restart())

	after := grading.StatusEvent{SubmissionID: uuid.New(), OwnerID: "user-1", Status: models.SubmissionStatusFailed}
	require.Eventually(t, relayed(after), 5*time.Second, 20*time.Millisecond)
}

func TestStatusBrokerKeepsRetryingUntilCancelled(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 10 * time.Millisecond})
	defer client.Close()

	broker := NewStatusBroker(client, "artdirector", zerolog.Nop()).(*statusBroker)
	broker.resubscribeMin = time.Millisecond
	broker.resubscribeMax = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		broker.consumeRedis(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("consumer stopped before the context was cancelled")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}
