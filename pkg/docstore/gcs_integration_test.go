//go:build integration

package docstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGCSStore_Integration runs against a GCS emulator (for example fake-gcs-server)
// pointed to by STORAGE_EMULATOR_HOST.
func TestGCSStore_Integration(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	cfg := &docstore.GCSConfig{BucketName: "questions-" + uuid.NewString()[:8], ObjectPrefix: "comments/"}
	client, err := docstore.NewGCSClient(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Bucket(cfg.BucketName).Create(ctx, "test-project", nil))

	store, err := docstore.NewGCSStore[testDoc](cfg, client, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.Upsert(ctx, "m1", testDoc{Name: "first", Count: 1})
	require.NoError(t, err)
	result, err := store.Upsert(ctx, "m1", testDoc{Name: "second", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "m1", result.DocumentID)
	assert.False(t, result.UpdateTime.IsZero())

	stored, err := store.Fetch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, testDoc{Name: "second", Count: 2}, stored)

	_, err = store.Fetch(ctx, "missing")
	assert.True(t, errors.Is(err, docstore.ErrNotFound))

	_, err = client.Bucket(cfg.BucketName).Object("comments/m1.json").Attrs(ctx)
	assert.NoError(t, err)
}
