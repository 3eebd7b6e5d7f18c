package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/artdirector-api/pkg/ai"
)

// Invoker issues the single grading call for a piece of media.
type Invoker struct {
	generator ai.Generator
	timeout   time.Duration
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewInvoker wraps a generator. A non-positive timeout leaves the call bounded only by ctx.
func NewInvoker(generator ai.Generator, timeout time.Duration, logger zerolog.Logger) *Invoker {
	return &Invoker{
		generator: generator,
		timeout:   timeout,
		tracer:    otel.Tracer("github.com/noah-isme/artdirector-api/internal/grading"),
		logger:    logger.With().Str("component", "grading_invoker").Logger(),
	}
}

// Invoke sends media, instruction and the rubric prompt once and returns the raw text.
func (i *Invoker) Invoke(parent context.Context, media ai.Media, instruction string) (string, error) {
	ctx, span := i.tracer.Start(parent, "grading.invoke", trace.WithAttributes(
		attribute.String("provider", i.generator.Name()),
		attribute.String("media.mime_type", media.MIMEType),
	))
	defer span.End()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	raw, err := i.generator.Generate(ctx, ai.GenerateRequest{
		Media:       media,
		Instruction: instruction,
		Prompt:      rubricPrompt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %w", ErrInferenceCallFailed, err)
	}

	i.logger.Debug().Int("response_bytes", len(raw)).Msg("grading call returned")
	return raw, nil
}
