// Package grading runs the asynchronous grading pipeline for uploaded artifacts.
package grading

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/pkg/ai"
)

// BlobOpener reads stored artifacts back by handle.
type BlobOpener interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

// Job identifies one grading attempt.
type Job struct {
	SubmissionID  uuid.UUID
	StorageHandle string
	ContentType   string
}

// Pipeline drives a submission from stored blob to terminal state.
type Pipeline struct {
	blobs      BlobOpener
	stager     *Stager
	invoker    *Invoker
	normalizer *Normalizer
	lifecycle  Lifecycle
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(blobs BlobOpener, stager *Stager, invoker *Invoker, normalizer *Normalizer, lifecycle Lifecycle, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		blobs:      blobs,
		stager:     stager,
		invoker:    invoker,
		normalizer: normalizer,
		lifecycle:  lifecycle,
		logger:     logger.With().Str("component", "grading_pipeline").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/artdirector-api/internal/grading"),
	}
}

// Run grades one submission and writes exactly one terminal state. Grading
// errors never escape; the returned error is non-nil only when the terminal
// state itself could not be written.
func (p *Pipeline) Run(parent context.Context, job Job) (err error) {
	ctx, span := p.tracer.Start(parent, "grading.run", trace.WithAttributes(
		attribute.String("submission_id", job.SubmissionID.String()),
		attribute.String("content_type", job.ContentType),
	))
	defer span.End()

	logger := p.logger.With().
		Str("submission_id", job.SubmissionID.String()).
		Str("content_type", job.ContentType).
		Logger()

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().
				Str("failure_reason", ReasonPanic).
				Interface("panic", recovered).
				Bytes("stack", debug.Stack()).
				Msg("grading pipeline panicked")
			span.SetStatus(codes.Error, "panic")
			_, err = p.lifecycle.Fail(context.WithoutCancel(ctx), job.SubmissionID, ReasonPanic)
		}
	}()

	settled, err := p.lifecycle.Settled(ctx, job.SubmissionID)
	if err != nil {
		logger.Warn().Err(err).Msg("could not check submission state, grading anyway")
	}
	if settled {
		logger.Info().Msg("submission already settled, skipping grading")
		jobsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	result, gradeErr := p.grade(ctx, job, logger)
	if gradeErr != nil {
		reason := FailureReason(gradeErr)
		span.RecordError(gradeErr)
		span.SetStatus(codes.Error, reason)
		logger.Error().Err(gradeErr).Str("failure_reason", reason).Msg("grading failed")

		if _, err := p.lifecycle.Fail(context.WithoutCancel(ctx), job.SubmissionID, reason); err != nil {
			return fmt.Errorf("record failure for %s: %w", job.SubmissionID, err)
		}
		return nil
	}

	done := p.timeStage("lifecycle")
	_, err = p.lifecycle.Complete(context.WithoutCancel(ctx), job.SubmissionID, result)
	done()
	if err != nil {
		return fmt.Errorf("record grade for %s: %w", job.SubmissionID, err)
	}

	logger.Info().Float64("score", result.Score).Str("category", result.Category).Msg("submission graded")
	return nil
}

func (p *Pipeline) grade(ctx context.Context, job Job, logger zerolog.Logger) (models.GradeResult, error) {
	done := p.timeStage("download")
	data, err := p.download(ctx, job.StorageHandle)
	done()
	if err != nil {
		return models.GradeResult{}, err
	}

	route := RouteFor(job.ContentType)
	mimeType := job.ContentType
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	logger.Debug().Str("stage", "route").Str("route", route.String()).Int("bytes", len(data)).Msg("media routed")

	media := ai.Media{MIMEType: mimeType, Data: data}
	if route == RouteRemote {
		done := p.timeStage("stage")
		staged, err := p.stager.Stage(ctx, data, mimeType, "Design Audit Video")
		done()
		if err != nil {
			return models.GradeResult{}, err
		}
		defer staged.Release()
		media = staged.Media()
	}

	done = p.timeStage("invoke")
	raw, err := p.invoker.Invoke(ctx, media, route.Instruction())
	done()
	if err != nil {
		return models.GradeResult{}, err
	}

	done = p.timeStage("normalize")
	result, err := p.normalizer.Normalize(raw)
	done()
	if err != nil {
		logger.Debug().Str("stage", "normalize").Str("raw", truncate(raw, 512)).Msg("rejected provider output")
		return models.GradeResult{}, err
	}
	return result, nil
}

func (p *Pipeline) download(ctx context.Context, handle string) ([]byte, error) {
	reader, err := p.blobs.Open(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrMediaUnavailable, handle, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, models.MaxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrMediaUnavailable, handle, err)
	}
	if int64(len(data)) > models.MaxArtifactBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrMediaUnavailable, handle, models.MaxArtifactBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMediaUnavailable, handle)
	}
	return data, nil
}

func (p *Pipeline) timeStage(stage string) func() {
	start := time.Now()
	return func() {
		stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
