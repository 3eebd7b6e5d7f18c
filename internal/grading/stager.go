package grading

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/artdirector-api/pkg/ai"
)

const remoteCleanupTimeout = 15 * time.Second

// StagerConfig tunes remote staging.
type StagerConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	StagingDir   string
}

// Stager uploads video bytes to the provider and waits until the file can be cited.
type Stager struct {
	files  ai.FileService
	cfg    StagerConfig
	logger zerolog.Logger
}

// StagedFile is a provider-hosted file ready for an inference call. Release
// must be called once the inference call has returned.
type StagedFile struct {
	Name     string
	URI      string
	MIMEType string

	once    sync.Once
	release func()
}

// Media returns the reference the invoker passes to the provider.
func (f *StagedFile) Media() ai.Media {
	return ai.Media{MIMEType: f.MIMEType, URI: f.URI}
}

// Release deletes the remote file. Repeated calls are no-ops.
func (f *StagedFile) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}

// NewStager constructs a stager around the provider's file service.
func NewStager(files ai.FileService, cfg StagerConfig, logger zerolog.Logger) *Stager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * time.Minute
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}

	return &Stager{
		files:  files,
		cfg:    cfg,
		logger: logger.With().Str("component", "remote_file_stager").Logger(),
	}
}

// Stage writes data to a local staging file, uploads it and polls until the
// provider reports a terminal state. The local file is removed on every path.
// On failure or timeout the remote file is deleted before returning.
func (s *Stager) Stage(ctx context.Context, data []byte, mimeType, displayName string) (*StagedFile, error) {
	path, err := s.writeLocal(data, mimeType)
	if err != nil {
		return nil, err
	}
	defer s.removeLocal(path)

	file, err := s.files.UploadFile(ctx, path, mimeType, displayName)
	if err != nil {
		return nil, fmt.Errorf("%w: upload: %w", ErrRemoteProcessingFailed, err)
	}

	logger := s.logger.With().Str("remote_file", file.Name).Logger()
	deadline := time.Now().Add(s.cfg.MaxWait)
	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for file.State == ai.FileStateProcessing {
		select {
		case <-pollCtx.Done():
			s.deleteRemote(ctx, file.Name)
			return nil, s.waitError(ctx, file.Name)
		case <-time.After(s.cfg.PollInterval):
		}

		stagerPolls.Inc()
		next, err := s.files.GetFile(pollCtx, file.Name)
		if err != nil {
			s.deleteRemote(ctx, file.Name)
			if pollCtx.Err() != nil {
				return nil, s.waitError(ctx, file.Name)
			}
			return nil, fmt.Errorf("%w: poll %s: %w", ErrRemoteProcessingFailed, file.Name, err)
		}
		file = next
		logger.Debug().Str("state", string(file.State)).Msg("polled remote file")
	}

	switch file.State {
	case ai.FileStateActive:
		mime := file.MIMEType
		if mime == "" {
			mime = mimeType
		}
		staged := &StagedFile{Name: file.Name, URI: file.URI, MIMEType: mime}
		staged.release = func() { s.deleteRemote(ctx, staged.Name) }
		return staged, nil
	case ai.FileStateFailed:
		s.deleteRemote(ctx, file.Name)
		if file.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRemoteProcessingFailed, file.Error)
		}
		return nil, ErrRemoteProcessingFailed
	default:
		s.deleteRemote(ctx, file.Name)
		return nil, fmt.Errorf("%w: unexpected state %q", ErrRemoteProcessingFailed, file.State)
	}
}

func (s *Stager) waitError(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("staging %s: %w", name, err)
	}
	return fmt.Errorf("%w: %s still processing after %s", ErrRemoteProcessingTimeout, name, s.cfg.MaxWait)
}

func (s *Stager) writeLocal(data []byte, mimeType string) (string, error) {
	file, err := os.CreateTemp(s.cfg.StagingDir, "staging-*"+stagingExtension(mimeType))
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		s.removeLocal(file.Name())
		return "", fmt.Errorf("write staging file: %w", err)
	}

	if err := file.Close(); err != nil {
		s.removeLocal(file.Name())
		return "", fmt.Errorf("close staging file: %w", err)
	}

	return file.Name(), nil
}

func (s *Stager) removeLocal(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		cleanupFailures.WithLabelValues("local_staging_file").Inc()
		s.logger.Warn().Err(err).Str("cleanup", "local_staging_file").Str("path", path).Msg("failed to remove staging file")
	}
}

// deleteRemote runs detached from ctx cancellation so a timed-out attempt still cleans up.
func (s *Stager) deleteRemote(ctx context.Context, name string) {
	if name == "" {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteCleanupTimeout)
	defer cancel()

	if err := s.files.DeleteFile(cleanupCtx, name); err != nil {
		cleanupFailures.WithLabelValues("remote_staged_file").Inc()
		s.logger.Warn().Err(err).Str("cleanup", "remote_staged_file").Str("remote_file", name).Msg("failed to delete staged file")
	}
}

func stagingExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
