package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const natsQueueGroup = "artdirector-graders"

// NATSQueue distributes jobs over a NATS subject consumed by a queue group, so
// each job reaches exactly one worker process. Core NATS has no redelivery, so
// a requeue republishes the job.
type NATSQueue struct {
	conn    *nats.Conn
	subject string
	buffer  int
	logger  zerolog.Logger
}

// NewNATS wraps an established NATS connection.
func NewNATS(conn *nats.Conn, subject string, buffer int, logger zerolog.Logger) (*NATSQueue, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &NATSQueue{
		conn:    conn,
		subject: subject,
		buffer:  buffer,
		logger:  logger.With().Str("component", "nats_queue").Logger(),
	}, nil
}

func (q *NATSQueue) Backend() string { return "nats" }

func (q *NATSQueue) Publish(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.conn.Publish(q.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (q *NATSQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	messages := make(chan *nats.Msg, q.buffer)
	sub, err := q.conn.ChanQueueSubscribe(q.subject, natsQueueGroup, messages)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Drain(); err != nil {
				q.logger.Warn().Err(err).Msg("failed to drain nats subscription")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-messages:
				job, err := decodeJob(msg.Data)
				if err != nil {
					q.logger.Warn().Err(err).Msg("dropping invalid job payload")
					continue
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

// Close flushes pending publishes. The connection itself is owned by the caller.
func (q *NATSQueue) Close() error {
	return q.conn.Flush()
}
