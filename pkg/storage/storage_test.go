package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewObjectKeyUsesContentTypeExtension(t *testing.T) {
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	require.True(t, strings.HasPrefix(NewObjectKey("image/png", now), "submissions/2026/03/"))
	require.True(t, strings.HasSuffix(NewObjectKey("video/webm", now), ".webm"))
	require.True(t, strings.HasSuffix(NewObjectKey("application/x-unknown", now), ".bin"))
	require.NotEqual(t, NewObjectKey("image/png", now), NewObjectKey("image/png", now))
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemory("https://blobs.test/")
	ctx := context.Background()

	handle, err := store.Put(ctx, "a.png", "image/png", bytes.NewReader([]byte("png")), 3)
	require.NoError(t, err)

	_, err = store.Put(ctx, "a.png", "image/png", bytes.NewReader([]byte("again")), 5)
	require.Error(t, err, "slots are write-once")

	reader, err := store.Open(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "png", string(data))

	url, err := store.ReadURL(ctx, handle, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "https://blobs.test/a.png?ttl=60", url)

	require.NoError(t, store.Delete(ctx, handle))
	_, err = store.Open(ctx, handle)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestSplitCloudinaryHandle(t *testing.T) {
	resourceType, publicID, err := splitCloudinaryHandle("video/artdirector/submissions/abc")
	require.NoError(t, err)
	require.Equal(t, "video", resourceType)
	require.Equal(t, "artdirector/submissions/abc", publicID)

	_, _, err = splitCloudinaryHandle("no-slash")
	require.Error(t, err)
}
