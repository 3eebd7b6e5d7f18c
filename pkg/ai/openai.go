package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIProvider grades inline images through the chat completion API.
// OpenAI has no staging area for video, so the file methods always fail.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAI builds a new provider using the provided configuration.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/artdirector-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai").Logger(),
	}, nil
}

// Name identifies the provider in metrics and logs.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends the rubric as the system prompt and the image plus instruction as the user turn.
func (p *OpenAIProvider) Generate(parent context.Context, req GenerateRequest) (string, error) {
	ctx, span := p.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
		attribute.String("media.mime_type", req.Media.MIMEType),
	))
	defer span.End()

	imageURL, err := imageDataURL(req.Media)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	request := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.Prompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Instruction,
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, request)
	inferenceDuration.WithLabelValues(p.Name(), p.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		inferenceFailures.WithLabelValues(p.Name(), p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		inferenceFailures.WithLabelValues(p.Name(), p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	p.logger.Debug().Int("prompt_tokens", resp.Usage.PromptTokens).Int("completion_tokens", resp.Usage.CompletionTokens).Msg("completion received")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// UploadFile is not available for OpenAI.
func (p *OpenAIProvider) UploadFile(context.Context, string, string, string) (RemoteFile, error) {
	return RemoteFile{}, ErrFileStagingUnsupported
}

// GetFile is not available for OpenAI.
func (p *OpenAIProvider) GetFile(context.Context, string) (RemoteFile, error) {
	return RemoteFile{}, ErrFileStagingUnsupported
}

// DeleteFile is not available for OpenAI.
func (p *OpenAIProvider) DeleteFile(context.Context, string) error {
	return ErrFileStagingUnsupported
}

func imageDataURL(media Media) (string, error) {
	if !media.Inline() || !strings.HasPrefix(media.MIMEType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, media.MIMEType)
	}
	if len(media.Data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrUnsupportedMedia)
	}
	return "data:" + media.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(media.Data), nil
}
