package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/artdirector-api/internal/models"
)

// SubmissionCreateRequest describes the multipart fields accompanying an upload.
type SubmissionCreateRequest struct {
	Title       string `form:"title" validate:"required,max=200"`
	ContentType string `form:"content_type" validate:"required,max=64"`
	ReviewerKey string `form:"reviewer_key" validate:"omitempty,email,max=320"`
	SizeBytes   int64  `form:"-" validate:"gte=0"`
}

// SubmissionCreateResponse is returned as soon as intake has recorded the submission.
type SubmissionCreateResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID            uuid.UUID           `json:"id"`
	OwnerID       string              `json:"owner_id"`
	OwnerName     string              `json:"owner_name"`
	ReviewerKey   *string             `json:"reviewer_key"`
	Title         string              `json:"title"`
	ContentType   *string             `json:"content_type"`
	MediaKind     string              `json:"media_kind"`
	SizeBytes     int64               `json:"size_bytes"`
	Status        string              `json:"status"`
	FileURL       string              `json:"file_url"`
	Grade         *models.GradeResult `json:"grade"`
	RubricVersion string              `json:"rubric_version,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	CompletedAt   *time.Time          `json:"completed_at"`
}

// NewSubmissionResponse maps the persistence model into the API shape.
// A stored grade that cannot be decoded is reported as absent.
func NewSubmissionResponse(submission models.Submission, fileURL string) SubmissionResponse {
	grade, err := submission.Result()
	if err != nil {
		grade = nil
	}

	return SubmissionResponse{
		ID:            submission.ID,
		OwnerID:       submission.OwnerID,
		OwnerName:     submission.OwnerName,
		ReviewerKey:   submission.ReviewerKey,
		Title:         submission.Title,
		ContentType:   submission.ContentType,
		MediaKind:     mediaKind(submission.MediaType()),
		SizeBytes:     submission.SizeBytes,
		Status:        submission.Status,
		FileURL:       fileURL,
		Grade:         grade,
		RubricVersion: submission.RubricVersion,
		FailureReason: submission.FailureReason,
		CreatedAt:     submission.CreatedAt,
		CompletedAt:   submission.CompletedAt,
	}
}

func mediaKind(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return "video"
	}
	return "image"
}
