package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RabbitMQConfig names the topology used for grading jobs.
type RabbitMQConfig struct {
	Exchange string
	Queue    string
	Prefetch int
}

// RabbitMQQueue publishes persistent jobs to a durable queue and consumes
// them with manual acknowledgement.
type RabbitMQQueue struct {
	channel   *amqp.Channel
	cfg       RabbitMQConfig
	logger    zerolog.Logger
	republish func(ctx context.Context, job Job) error
}

// NewRabbitMQ declares the exchange, queue and binding on a fresh channel.
func NewRabbitMQ(conn *amqp.Connection, cfg RabbitMQConfig, logger zerolog.Logger) (*RabbitMQQueue, error) {
	if cfg.Exchange == "" || cfg.Queue == "" {
		return nil, fmt.Errorf("rabbitmq exchange and queue are required")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(
		cfg.Queue,
		cfg.Queue,
		cfg.Exchange,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	q := &RabbitMQQueue{
		channel: ch,
		cfg:     cfg,
		logger:  logger.With().Str("component", "rabbitmq_queue").Logger(),
	}
	q.republish = q.Publish
	return q, nil
}

func (q *RabbitMQQueue) Backend() string { return "rabbitmq" }

func (q *RabbitMQQueue) Publish(ctx context.Context, job Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}

	return q.channel.PublishWithContext(ctx,
		q.cfg.Exchange,
		q.cfg.Queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.SubmissionID.String(),
			Body:         payload,
		},
	)
}

func (q *RabbitMQQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := q.channel.Consume(
		q.cfg.Queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume rabbitmq queue: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					q.logger.Warn().Msg("rabbitmq delivery channel closed")
					return
				}

				delivery, ok := q.delivery(msg)
				if !ok {
					continue
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

// delivery wraps a broker message. The message body is immutable, so a
// requeue publishes a copy with the next attempt number and acks the
// original; the attempt count then survives redelivery.
func (q *RabbitMQQueue) delivery(msg amqp.Delivery) (Delivery, bool) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		q.logger.Warn().Err(err).Msg("rejecting invalid job payload")
		_ = msg.Nack(false, false)
		return Delivery{}, false
	}

	return Delivery{
		Job: job,
		ack: func() error { return msg.Ack(false) },
		nack: func(requeue bool) error {
			if !requeue {
				return msg.Nack(false, false)
			}
			next := job
			next.Attempt++
			if err := q.republish(context.Background(), next); err != nil {
				q.logger.Warn().Err(err).Str("submission_id", job.SubmissionID.String()).Msg("failed to republish job, returning it to the queue")
				return msg.Nack(false, true)
			}
			return msg.Ack(false)
		},
	}, true
}

func (q *RabbitMQQueue) Close() error {
	return q.channel.Close()
}
