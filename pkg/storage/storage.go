// Package storage provides write-once blob storage for uploaded artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a handle does not reference a stored blob.
var ErrObjectNotFound = errors.New("object not found")

// Store is implemented by every object storage backend.
type Store interface {
	// Put writes the blob under key and returns the handle used for later access.
	Put(ctx context.Context, key, contentType string, reader io.Reader, size int64) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	ReadURL(ctx context.Context, handle string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, handle string) error
}

// NewObjectKey returns a fresh, collision-free key for a blob of the given type.
func NewObjectKey(contentType string, now time.Time) string {
	return fmt.Sprintf("submissions/%s/%s%s", now.UTC().Format("2006/01"), uuid.NewString(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
