package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/internal/repository"
)

// StatusEvent announces that a submission reached a terminal state.
type StatusEvent struct {
	SubmissionID  uuid.UUID `json:"submission_id"`
	OwnerID       string    `json:"owner_id"`
	ReviewerKey   string    `json:"reviewer_key,omitempty"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	At            time.Time `json:"at"`
}

// StatusPublisher receives terminal status events.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event StatusEvent)
}

// Lifecycle owns the terminal transitions of a submission.
type Lifecycle interface {
	// Complete moves a pending submission to graded. It reports false when
	// the submission was already terminal or does not exist.
	Complete(ctx context.Context, id uuid.UUID, result models.GradeResult) (bool, error)
	// Fail moves a pending submission to failed with a machine-readable reason.
	Fail(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	// SweepStale fails pending submissions created before the cutoff.
	SweepStale(ctx context.Context, createdBefore time.Time) (int, error)
	// Settled reports whether the submission is terminal or no longer exists.
	Settled(ctx context.Context, id uuid.UUID) (bool, error)
}

type lifecycle struct {
	repo      repository.SubmissionRepository
	publisher StatusPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewLifecycle constructs the lifecycle controller. publisher may be nil.
func NewLifecycle(repo repository.SubmissionRepository, publisher StatusPublisher, logger zerolog.Logger) Lifecycle {
	return &lifecycle{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "lifecycle_controller").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/artdirector-api/internal/grading"),
		now:       time.Now,
	}
}

func (l *lifecycle) Complete(ctx context.Context, id uuid.UUID, result models.GradeResult) (bool, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.complete", trace.WithAttributes(attribute.String("submission_id", id.String())))
	defer span.End()

	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode grade result: %w", err)
	}

	applied, err := l.repo.MarkGraded(ctx, id, datatypes.JSON(payload), RubricVersion, l.now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark graded: %w", err)
	}

	if !applied {
		l.logger.Info().Str("submission_id", id.String()).Msg("submission already terminal, grade discarded")
		return false, nil
	}

	jobsTotal.WithLabelValues(models.SubmissionStatusGraded).Inc()
	score := result.Score
	l.publish(ctx, id, models.SubmissionStatusGraded, "", &score)
	return true, nil
}

func (l *lifecycle) Fail(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.fail", trace.WithAttributes(
		attribute.String("submission_id", id.String()),
		attribute.String("failure_reason", reason),
	))
	defer span.End()

	if reason == "" {
		reason = ReasonInternal
	}

	applied, err := l.repo.MarkFailed(ctx, id, reason, l.now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}

	if !applied {
		l.logger.Info().Str("submission_id", id.String()).Str("failure_reason", reason).Msg("submission already terminal, failure discarded")
		return false, nil
	}

	jobsTotal.WithLabelValues(models.SubmissionStatusFailed).Inc()
	l.publish(ctx, id, models.SubmissionStatusFailed, reason, nil)
	return true, nil
}

func (l *lifecycle) Settled(ctx context.Context, id uuid.UUID) (bool, error) {
	submission, err := l.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("load submission: %w", err)
	}
	return submission.IsTerminal(), nil
}

func (l *lifecycle) SweepStale(ctx context.Context, createdBefore time.Time) (int, error) {
	stale, err := l.repo.ListStalePending(ctx, createdBefore, 100)
	if err != nil {
		return 0, fmt.Errorf("list stale submissions: %w", err)
	}

	failed := 0
	for _, submission := range stale {
		applied, err := l.Fail(ctx, submission.ID, ReasonStalePending)
		if err != nil {
			l.logger.Error().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to sweep stale submission")
			continue
		}
		if applied {
			failed++
		}
	}

	if failed > 0 {
		l.logger.Warn().Int("count", failed).Time("created_before", createdBefore).Msg("stale pending submissions failed")
	}
	return failed, nil
}

func (l *lifecycle) publish(ctx context.Context, id uuid.UUID, status, reason string, score *float64) {
	if l.publisher == nil {
		return
	}

	submission, err := l.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.logger.Warn().Err(err).Str("submission_id", id.String()).Msg("failed to load submission for status event")
		}
		return
	}

	event := StatusEvent{
		SubmissionID:  id,
		OwnerID:       submission.OwnerID,
		Title:         submission.Title,
		Status:        status,
		FailureReason: reason,
		Score:         score,
		At:            l.now().UTC(),
	}
	if submission.ReviewerKey != nil {
		event.ReviewerKey = *submission.ReviewerKey
	}
	l.publisher.PublishStatus(ctx, event)
}
