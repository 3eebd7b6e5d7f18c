package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// CloudinaryStore keeps artifacts as Cloudinary assets. Handles have the
// form "<resource_type>/<public_id>".
type CloudinaryStore struct {
	client     *cloudinary.Cloudinary
	folder     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewCloudinary constructs a Cloudinary-backed store.
func NewCloudinary(cfg CloudinaryConfig, logger zerolog.Logger) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &CloudinaryStore{
		client:     cld,
		folder:     strings.Trim(cfg.Folder, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, key, _ string, reader io.Reader, _ int64) (string, error) {
	publicID := strings.TrimSuffix(path.Base(key), path.Ext(key))

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.ResourceType + "/" + result.PublicID, nil
}

func (s *CloudinaryStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	deliveryURL, err := s.ReadURL(ctx, handle, 0)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, deliveryURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download asset: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download asset: unexpected status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// ReadURL returns the asset delivery URL. Cloudinary delivery URLs do not expire,
// so ttl is ignored.
func (s *CloudinaryStore) ReadURL(_ context.Context, handle string, _ time.Duration) (string, error) {
	resourceType, publicID, err := splitCloudinaryHandle(handle)
	if err != nil {
		return "", err
	}

	if resourceType == "video" {
		asset, err := s.client.Video(publicID)
		if err != nil {
			return "", fmt.Errorf("build video url: %w", err)
		}
		return asset.String()
	}

	asset, err := s.client.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("build image url: %w", err)
	}
	return asset.String()
}

func (s *CloudinaryStore) Delete(ctx context.Context, handle string) error {
	resourceType, publicID, err := splitCloudinaryHandle(handle)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to destroy asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("asset removed from cloudinary")
	return nil
}

func splitCloudinaryHandle(handle string) (string, string, error) {
	resourceType, publicID, ok := strings.Cut(handle, "/")
	if !ok || resourceType == "" || publicID == "" {
		return "", "", fmt.Errorf("invalid cloudinary handle %q", handle)
	}
	return resourceType, publicID, nil
}
