package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// SubmissionStatusPending indicates the artifact is stored and awaiting a grading outcome.
	SubmissionStatusPending = "pending"
	// SubmissionStatusGraded indicates a grade result has been attached.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusFailed indicates grading ended without a result.
	SubmissionStatusFailed = "failed"
)

// MaxArtifactBytes is the largest artifact accepted for grading.
const MaxArtifactBytes int64 = 50 << 20

// Submission represents one uploaded artifact and its grading outcome.
type Submission struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID       string         `gorm:"size:191;not null;index:idx_submissions_owner" json:"owner_id"`
	OwnerName     string         `gorm:"size:191" json:"owner_name"`
	ReviewerKey   *string        `gorm:"size:320;index:idx_submissions_reviewer" json:"reviewer_key"`
	Title         string         `gorm:"size:200;not null" json:"title"`
	StorageHandle string         `gorm:"size:512;not null" json:"-"`
	ContentType   *string        `gorm:"size:64" json:"content_type"`
	SizeBytes     int64          `gorm:"default:0" json:"size_bytes"`
	Status        string         `gorm:"size:16;not null;index" json:"status"`
	GradeResult   datatypes.JSON `json:"grade_result"`
	RubricVersion string         `gorm:"size:32" json:"rubric_version"`
	FailureReason string         `gorm:"size:64" json:"failure_reason"`
	CompletedAt   *time.Time     `json:"completed_at"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (s *Submission) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether the submission reached graded or failed.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusGraded || s.Status == SubmissionStatusFailed
}

// MediaType returns the declared content type, or an empty string for
// records created before content types were stored.
func (s Submission) MediaType() string {
	if s.ContentType == nil {
		return ""
	}
	return strings.TrimSpace(*s.ContentType)
}

// Result decodes the stored grade payload. It returns nil when the
// submission has not been graded.
func (s Submission) Result() (*GradeResult, error) {
	if s.Status != SubmissionStatusGraded || len(s.GradeResult) == 0 {
		return nil, nil
	}

	var result GradeResult
	if err := json.Unmarshal(s.GradeResult, &result); err != nil {
		return nil, fmt.Errorf("decode grade result: %w", err)
	}
	return &result, nil
}
