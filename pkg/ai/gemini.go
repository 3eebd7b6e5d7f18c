package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GeminiConfig defines configuration options for the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Logger      zerolog.Logger
}

// GeminiProvider implements Provider against the Gemini API, including its Files API.
type GeminiProvider struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGemini builds a provider using the supplied configuration.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiProvider{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/artdirector-api/pkg/ai/gemini"),
		logger: logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// Name identifies the provider in metrics and logs.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate sends the media, instruction and rubric prompt as one user turn.
func (p *GeminiProvider) Generate(parent context.Context, req GenerateRequest) (string, error) {
	ctx, span := p.tracer.Start(parent, "gemini.generate", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
		attribute.String("media.mime_type", req.Media.MIMEType),
		attribute.Bool("media.inline", req.Media.Inline()),
	))
	defer span.End()

	var mediaPart *genai.Part
	if req.Media.Inline() {
		mediaPart = genai.NewPartFromBytes(req.Media.Data, req.Media.MIMEType)
	} else {
		mediaPart = genai.NewPartFromURI(req.Media.URI, req.Media.MIMEType)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			mediaPart,
			genai.NewPartFromText(req.Instruction),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.cfg.Temperature),
	})
	inferenceDuration.WithLabelValues(p.Name(), p.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		inferenceFailures.WithLabelValues(p.Name(), p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		err := fmt.Errorf("gemini returned no text")
		inferenceFailures.WithLabelValues(p.Name(), p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return text, nil
}

// UploadFile pushes a local file to the Gemini Files API.
func (p *GeminiProvider) UploadFile(ctx context.Context, path, mimeType, displayName string) (RemoteFile, error) {
	file, err := p.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return RemoteFile{}, fmt.Errorf("gemini upload file: %w", err)
	}

	p.logger.Debug().Str("file", file.Name).Str("state", string(file.State)).Msg("file uploaded")
	return convertGeminiFile(file), nil
}

// GetFile fetches the current processing state of a staged file.
func (p *GeminiProvider) GetFile(ctx context.Context, name string) (RemoteFile, error) {
	file, err := p.client.Files.Get(ctx, name, nil)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("gemini get file: %w", err)
	}
	return convertGeminiFile(file), nil
}

// DeleteFile removes a staged file from the provider.
func (p *GeminiProvider) DeleteFile(ctx context.Context, name string) error {
	if _, err := p.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("gemini delete file: %w", err)
	}
	return nil
}

func convertGeminiFile(file *genai.File) RemoteFile {
	if file == nil {
		return RemoteFile{State: FileStateUnknown}
	}

	remote := RemoteFile{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    geminiFileState(file.State),
	}
	if file.Error != nil {
		remote.Error = file.Error.Message
	}
	return remote
}

func geminiFileState(state genai.FileState) FileState {
	switch state {
	case genai.FileStateProcessing:
		return FileStateProcessing
	case genai.FileStateActive:
		return FileStateActive
	case genai.FileStateFailed:
		return FileStateFailed
	default:
		return FileStateUnknown
	}
}
