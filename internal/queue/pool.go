package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/artdirector-api/internal/observability"
)

// Handler processes one job. A returned error means the job was not recorded
// and should be redelivered.
type Handler func(ctx context.Context, job Job) error

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	Concurrency int
	MaxAttempts int
}

// Pool runs a fixed number of workers over a consumer's deliveries.
type Pool struct {
	queue   Queue
	handler Handler
	cfg     PoolConfig
	logger  zerolog.Logger
}

// NewPool constructs a worker pool.
func NewPool(queue Queue, handler Handler, cfg PoolConfig, logger zerolog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Pool{
		queue:   queue,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "worker_pool").Str("backend", queue.Backend()).Logger(),
	}
}

// Run blocks until ctx is cancelled and every in-flight job has finished.
// Jobs run on a context detached from ctx so shutdown drains rather than aborts them.
func (p *Pool) Run(ctx context.Context) error {
	deliveries, err := p.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	p.logger.Info().Int("concurrency", p.cfg.Concurrency).Msg("worker pool started")

	group := errgroup.Group{}
	for worker := 0; worker < p.cfg.Concurrency; worker++ {
		group.Go(func() error {
			for delivery := range deliveries {
				p.process(context.WithoutCancel(ctx), worker, delivery)
			}
			return nil
		})
	}

	err = group.Wait()
	p.logger.Info().Msg("worker pool stopped")
	return err
}

func (p *Pool) process(ctx context.Context, worker int, delivery Delivery) {
	job := delivery.Job
	logger := p.logger.With().
		Int("worker", worker).
		Str("submission_id", job.SubmissionID.String()).
		Int("attempt", job.Attempt).
		Logger()

	if err := p.handler(ctx, job); err != nil {
		requeue := job.Attempt+1 < p.cfg.MaxAttempts
		logger.Error().Err(err).Bool("requeue", requeue).Msg("grading job not recorded")
		observability.QueueDeliveries().WithLabelValues(p.queue.Backend(), "nack").Inc()
		if nackErr := delivery.Nack(requeue); nackErr != nil {
			logger.Warn().Err(nackErr).Msg("failed to nack delivery")
		}
		return
	}

	observability.QueueDeliveries().WithLabelValues(p.queue.Backend(), "ack").Inc()
	if err := delivery.Ack(); err != nil {
		logger.Warn().Err(err).Msg("failed to ack delivery")
	}
}
