// Package queue carries grading jobs from intake to the worker pool.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when a bounded queue cannot accept more jobs.
var ErrQueueFull = errors.New("queue full")

// ErrQueueClosed is returned when publishing to a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// Job is the wire payload for one grading attempt.
type Job struct {
	SubmissionID  uuid.UUID `json:"submission_id"`
	StorageHandle string    `json:"storage_handle"`
	ContentType   string    `json:"content_type,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	Attempt       int       `json:"attempt"`
}

// Delivery is a job handed to a worker along with its acknowledgement hooks.
type Delivery struct {
	Job  Job
	ack  func() error
	nack func(requeue bool) error
}

// Ack confirms the job was processed.
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack rejects the job, optionally asking the backend to redeliver it.
func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Publisher enqueues grading jobs.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// Consumer streams deliveries until ctx is cancelled, then closes the channel.
type Consumer interface {
	Consume(ctx context.Context) (<-chan Delivery, error)
}

// Queue is a job transport backend.
type Queue interface {
	Publisher
	Consumer
	Backend() string
	Close() error
}

func encodeJob(job Job) ([]byte, error) {
	if job.SubmissionID == uuid.Nil {
		return nil, fmt.Errorf("job submission id is required")
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return json.Marshal(job)
}

func decodeJob(payload []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.SubmissionID == uuid.Nil {
		return Job{}, fmt.Errorf("decode job: missing submission id")
	}
	return job, nil
}
