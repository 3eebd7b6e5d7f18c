package grading

import (
	"context"
	"errors"
)

var (
	// ErrRemoteProcessingFailed indicates the provider rejected or failed to process a staged file.
	ErrRemoteProcessingFailed = errors.New("remote processing failed")
	// ErrRemoteProcessingTimeout indicates a staged file never left the processing state in time.
	ErrRemoteProcessingTimeout = errors.New("remote processing timed out")
	// ErrInferenceCallFailed indicates the grading call itself failed.
	ErrInferenceCallFailed = errors.New("inference call failed")
	// ErrMalformedGradeResponse indicates the provider output violated the grade contract.
	ErrMalformedGradeResponse = errors.New("malformed grade response")
	// ErrMediaUnavailable indicates the stored blob could not be read back.
	ErrMediaUnavailable = errors.New("media unavailable")
)

// Failure reasons persisted on failed submissions.
const (
	ReasonRemoteProcessingFailed  = "remote_processing_failed"
	ReasonRemoteProcessingTimeout = "remote_processing_timeout"
	ReasonInferenceCallFailed     = "inference_call_failed"
	ReasonMalformedGradeResponse  = "malformed_grade_response"
	ReasonMediaUnavailable        = "media_unavailable"
	ReasonEnqueueFailed           = "enqueue_failed"
	ReasonStalePending            = "stale_pending"
	ReasonPanic                   = "panic"
	ReasonInternal                = "internal"
)

// FailureReason maps a pipeline error onto its persisted failure reason.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrRemoteProcessingTimeout):
		return ReasonRemoteProcessingTimeout
	case errors.Is(err, ErrRemoteProcessingFailed):
		return ReasonRemoteProcessingFailed
	case errors.Is(err, ErrInferenceCallFailed):
		return ReasonInferenceCallFailed
	case errors.Is(err, ErrMalformedGradeResponse):
		return ReasonMalformedGradeResponse
	case errors.Is(err, ErrMediaUnavailable):
		return ReasonMediaUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonRemoteProcessingTimeout
	default:
		return ReasonInternal
	}
}
