package ai

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedMedia indicates the provider cannot accept the supplied media reference.
	ErrUnsupportedMedia = errors.New("media not supported by provider")
	// ErrFileStagingUnsupported indicates the provider has no remote file staging API.
	ErrFileStagingUnsupported = errors.New("provider does not support file staging")
)

// Media references the artifact passed to a multimodal call. Exactly one of
// Data (inline bytes) or URI (provider-hosted file) is set.
type Media struct {
	MIMEType string
	Data     []byte
	URI      string
}

// Inline reports whether the media is carried as inline bytes.
func (m Media) Inline() bool {
	return m.URI == ""
}

// GenerateRequest is a single multimodal inference call.
type GenerateRequest struct {
	Media       Media
	Instruction string
	Prompt      string
}

// FileState is the provider-side processing state of a staged file.
type FileState string

const (
	FileStateProcessing FileState = "PROCESSING"
	FileStateActive     FileState = "ACTIVE"
	FileStateFailed     FileState = "FAILED"
	FileStateUnknown    FileState = "UNKNOWN"
)

// RemoteFile describes a file held in the provider's staging area.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
	Error    string
}

// Generator issues multimodal inference calls and returns raw response text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// FileService uploads, inspects and removes provider-hosted files.
type FileService interface {
	UploadFile(ctx context.Context, path, mimeType, displayName string) (RemoteFile, error)
	GetFile(ctx context.Context, name string) (RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
}

// Provider is a multimodal inference backend.
type Provider interface {
	Generator
	FileService
}
