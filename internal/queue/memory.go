package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process bounded queue for single-node deployments.
type MemoryQueue struct {
	jobs   chan Job
	mu     sync.RWMutex
	closed bool
}

// NewMemory creates a queue holding up to buffer pending jobs.
func NewMemory(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryQueue{jobs: make(chan Job, buffer)}
}

func (q *MemoryQueue) Backend() string { return "memory" }

// Publish never blocks; a full buffer is reported as ErrQueueFull.
func (q *MemoryQueue) Publish(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				delivery := Delivery{
					Job: job,
					nack: func(requeue bool) error {
						if !requeue {
							return nil
						}
						job.Attempt++
						return q.Publish(context.Background(), job)
					},
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					_ = q.Publish(context.Background(), job)
					return
				}
			}
		}
	}()
	return out, nil
}

// Len reports the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
