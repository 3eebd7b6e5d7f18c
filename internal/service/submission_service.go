package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/grading"
	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/internal/observability"
	"github.com/noah-isme/artdirector-api/internal/queue"
	"github.com/noah-isme/artdirector-api/internal/repository"
	"github.com/noah-isme/artdirector-api/pkg/storage"
)

// ErrInvalidInput indicates the upload violates the type or size policy.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnauthorizedAccess indicates the caller may not see or change the submission.
var ErrUnauthorizedAccess = errors.New("unauthorized access")

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

const defaultOwnerName = "Unknown Apprentice"

var allowedContentTypes = map[string]string{
	"image/png":  "image",
	"image/jpeg": "image",
	"image/webp": "image",
	"video/mp4":  "video",
	"video/webm": "video",
}

// SubmissionService exposes artifact intake and submission access.
type SubmissionService interface {
	Create(ctx context.Context, identity dto.Identity, payload dto.SubmissionCreateRequest, content io.Reader) (dto.SubmissionCreateResponse, error)
	ListMine(ctx context.Context, identity dto.Identity) ([]dto.SubmissionResponse, error)
	ListReviewing(ctx context.Context, identity dto.Identity) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, identity dto.Identity, id uuid.UUID) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, identity dto.Identity, id uuid.UUID) error
}

// SubmissionServiceConfig tunes intake and read URLs.
type SubmissionServiceConfig struct {
	MaxBytes int64
	URLTTL   time.Duration
}

type submissionService struct {
	repo      repository.SubmissionRepository
	store     storage.Store
	urls      *readURLCache
	jobs      queue.Publisher
	lifecycle grading.Lifecycle
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	config    SubmissionServiceConfig
}

// NewSubmissionService constructs the submission service. cache may be nil.
func NewSubmissionService(repo repository.SubmissionRepository, store storage.Store, jobs queue.Publisher, lifecycle grading.Lifecycle, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger, cfg SubmissionServiceConfig) SubmissionService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = models.MaxArtifactBytes
	}

	return &submissionService{
		repo:      repo,
		store:     store,
		urls:      newReadURLCache(store, cache, cfg.URLTTL, logger),
		jobs:      jobs,
		lifecycle: lifecycle,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/artdirector-api/internal/service/submission"),
		config:    cfg,
	}
}

func (s *submissionService) Create(ctx context.Context, identity dto.Identity, payload dto.SubmissionCreateRequest, content io.Reader) (dto.SubmissionCreateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.create", trace.WithAttributes(
		attribute.String("owner_id", identity.Subject),
		attribute.String("content_type", payload.ContentType),
	))
	defer span.End()

	if strings.TrimSpace(identity.Subject) == "" {
		return dto.SubmissionCreateResponse{}, ErrUnauthorizedAccess
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionCreateResponse{}, s.reject("validation", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	contentType := normalizeContentType(payload.ContentType)
	family, ok := allowedContentTypes[contentType]
	if !ok {
		return dto.SubmissionCreateResponse{}, s.reject("content_type", fmt.Errorf("%w: content type %q is not accepted", ErrInvalidInput, payload.ContentType))
	}

	if payload.SizeBytes > s.config.MaxBytes {
		return dto.SubmissionCreateResponse{}, s.reject("size", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.config.MaxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(content, s.config.MaxBytes+1))
	if err != nil {
		return dto.SubmissionCreateResponse{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.config.MaxBytes {
		return dto.SubmissionCreateResponse{}, s.reject("size", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.config.MaxBytes))
	}
	if len(data) == 0 {
		return dto.SubmissionCreateResponse{}, s.reject("empty", fmt.Errorf("%w: file is empty", ErrInvalidInput))
	}

	if detected := mimetype.Detect(data); !matchesFamily(family, detected.String()) {
		return dto.SubmissionCreateResponse{}, s.reject("content_mismatch", fmt.Errorf("%w: content looks like %s, not %s", ErrInvalidInput, detected.String(), contentType))
	}

	title := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(payload.Title)))
	if title == "" {
		return dto.SubmissionCreateResponse{}, s.reject("validation", fmt.Errorf("%w: title is empty after sanitization", ErrInvalidInput))
	}

	key := storage.NewObjectKey(contentType, time.Now())
	handle, err := s.store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionCreateResponse{}, fmt.Errorf("store artifact: %w", err)
	}

	ownerName := strings.TrimSpace(identity.Name)
	if ownerName == "" {
		ownerName = defaultOwnerName
	}

	submission := models.Submission{
		OwnerID:       identity.Subject,
		OwnerName:     ownerName,
		Title:         title,
		StorageHandle: handle,
		ContentType:   &contentType,
		SizeBytes:     int64(len(data)),
		Status:        models.SubmissionStatusPending,
	}
	if reviewer := strings.ToLower(strings.TrimSpace(payload.ReviewerKey)); reviewer != "" {
		submission.ReviewerKey = &reviewer
	}

	if err := s.repo.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		if delErr := s.store.Delete(context.WithoutCancel(ctx), handle); delErr != nil {
			s.logger.Warn().Err(delErr).Str("handle", handle).Msg("failed to remove orphaned artifact")
		}
		return dto.SubmissionCreateResponse{}, fmt.Errorf("create submission: %w", err)
	}

	logger := s.logger.With().Str("submission_id", submission.ID.String()).Str("content_type", contentType).Logger()
	response := dto.SubmissionCreateResponse{ID: submission.ID, Status: submission.Status}

	job := queue.Job{SubmissionID: submission.ID, StorageHandle: handle, ContentType: contentType, EnqueuedAt: time.Now().UTC()}
	if err := s.jobs.Publish(ctx, job); err != nil {
		logger.Error().Err(err).Str("failure_reason", grading.ReasonEnqueueFailed).Msg("failed to enqueue grading job")
		if _, failErr := s.lifecycle.Fail(context.WithoutCancel(ctx), submission.ID, grading.ReasonEnqueueFailed); failErr != nil {
			logger.Error().Err(failErr).Msg("failed to record enqueue failure")
		} else {
			response.Status = models.SubmissionStatusFailed
		}
		return response, nil
	}

	logger.Info().Int64("size_bytes", submission.SizeBytes).Msg("submission accepted")
	return response, nil
}

func (s *submissionService) ListMine(ctx context.Context, identity dto.Identity) ([]dto.SubmissionResponse, error) {
	if strings.TrimSpace(identity.Subject) == "" {
		return nil, ErrUnauthorizedAccess
	}

	submissions, err := s.repo.ListByOwner(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	return s.withReadURLs(ctx, submissions)
}

func (s *submissionService) ListReviewing(ctx context.Context, identity dto.Identity) ([]dto.SubmissionResponse, error) {
	key := identity.ReviewerKey()
	if key == "" {
		return []dto.SubmissionResponse{}, nil
	}

	submissions, err := s.repo.ListByReviewer(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.withReadURLs(ctx, submissions)
}

func (s *submissionService) Get(ctx context.Context, identity dto.Identity, id uuid.UUID) (dto.SubmissionResponse, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !canView(identity, submission) {
		return dto.SubmissionResponse{}, ErrUnauthorizedAccess
	}

	url, err := s.urls.Resolve(ctx, submission.StorageHandle)
	if err != nil {
		s.logger.Warn().Err(err).Str("submission_id", id.String()).Msg("failed to resolve read url")
	}
	return dto.NewSubmissionResponse(submission, url), nil
}

func (s *submissionService) Delete(ctx context.Context, identity dto.Identity, id uuid.UUID) error {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if submission.OwnerID != identity.Subject {
		return ErrUnauthorizedAccess
	}

	if err := s.store.Delete(ctx, submission.StorageHandle); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	s.urls.Invalidate(ctx, submission.StorageHandle)

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}

	s.logger.Info().Str("submission_id", id.String()).Msg("submission deleted")
	return nil
}

func (s *submissionService) withReadURLs(ctx context.Context, submissions []models.Submission) ([]dto.SubmissionResponse, error) {
	responses := make([]dto.SubmissionResponse, len(submissions))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(8)

	for i := range submissions {
		group.Go(func() error {
			url, err := s.urls.Resolve(groupCtx, submissions[i].StorageHandle)
			if err != nil {
				s.logger.Warn().Err(err).Str("submission_id", submissions[i].ID.String()).Msg("failed to resolve read url")
			}
			responses[i] = dto.NewSubmissionResponse(submissions[i], url)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (s *submissionService) reject(reason string, err error) error {
	observability.UploadsRejected().WithLabelValues(reason).Inc()
	s.logger.Info().Err(err).Str("reason", reason).Msg("upload rejected")
	return err
}

func canView(identity dto.Identity, submission models.Submission) bool {
	if identity.Subject != "" && submission.OwnerID == identity.Subject {
		return true
	}
	key := identity.ReviewerKey()
	return key != "" && submission.ReviewerKey != nil && *submission.ReviewerKey == key
}

func normalizeContentType(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// matchesFamily allows audio-only WebM/MP4 containers to pass as video.
func matchesFamily(family, detected string) bool {
	switch family {
	case "image":
		return strings.HasPrefix(detected, "image/")
	case "video":
		return strings.HasPrefix(detected, "video/") || strings.HasPrefix(detected, "audio/")
	default:
		return false
	}
}
