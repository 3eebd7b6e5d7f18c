package grading

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically fails submissions that stayed pending too long.
type Sweeper struct {
	lifecycle  Lifecycle
	interval   time.Duration
	staleAfter time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSweeper constructs a sweeper.
func NewSweeper(lifecycle Lifecycle, interval, staleAfter time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Sweeper{
		lifecycle:  lifecycle,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger.With().Str("component", "stale_sweeper").Logger(),
		now:        time.Now,
	}
}

// RunOnce performs a single sweep and returns the number of submissions failed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	return s.lifecycle.SweepStale(ctx, s.now().UTC().Add(-s.staleAfter))
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Dur("stale_after", s.staleAfter).Msg("stale sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("stale sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("stale sweep failed")
			}
		}
	}
}
