package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GCSConfig holds configuration for the Cloud Storage document store.
type GCSConfig struct {
	BucketName      string `envconfig:"BUCKET"`
	ObjectPrefix    string `envconfig:"OBJECT_PREFIX" default:"comments/"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
}

// NewGCSClient creates a Cloud Storage client, using the credentials file if set.
func NewGCSClient(ctx context.Context, cfg *GCSConfig, logger zerolog.Logger) (*storage.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	logger.Info().Str("bucket", cfg.BucketName).Msg("GCS client created successfully.")
	return client, nil
}

// GCSStore writes each document as a JSON object named <prefix><key>.json.
// Overwriting an object replaces it, which makes every write an upsert.
type GCSStore[V any] struct {
	bucket       *storage.BucketHandle
	objectPrefix string
	logger       zerolog.Logger
}

// NewGCSStore creates a GCSStore for the configured bucket.
func NewGCSStore[V any](cfg *GCSConfig, client *storage.Client, logger zerolog.Logger) (*GCSStore[V], error) {
	if client == nil {
		return nil, fmt.Errorf("storage client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore[V]{
		bucket:       client.Bucket(cfg.BucketName),
		objectPrefix: cfg.ObjectPrefix,
		logger:       logger.With().Str("component", "GCSStore").Str("bucket", cfg.BucketName).Logger(),
	}, nil
}

func (s *GCSStore[V]) objectName(key string) string {
	return s.objectPrefix + key + ".json"
}

// Upsert replaces the object for key. Created and Updated come from the object
// attributes of the new generation.
func (s *GCSStore[V]) Upsert(ctx context.Context, key string, doc V) (WriteResult, error) {
	if key == "" {
		return WriteResult{}, NewPersistError(key, ErrEmptyKey)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return WriteResult{}, NewPersistError(key, fmt.Errorf("failed to marshal document: %w", err))
	}

	w := s.bucket.Object(s.objectName(key)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(jsonData); err != nil {
		_ = w.Close()
		return WriteResult{}, NewPersistError(key, fmt.Errorf("failed to write object: %w", err))
	}
	if err := w.Close(); err != nil {
		return WriteResult{}, NewPersistError(key, fmt.Errorf("failed to finalize object: %w", err))
	}

	result := WriteResult{DocumentID: key}
	if attrs := w.Attrs(); attrs != nil {
		result.CreateTime = attrs.Created
		result.UpdateTime = attrs.Updated
	}
	s.logger.Debug().Str("key", key).Msg("Successfully wrote document object to GCS.")
	return result, nil
}

// Fetch reads the object for key and decodes it.
func (s *GCSStore[V]) Fetch(ctx context.Context, key string) (V, error) {
	var zero V
	r, err := s.bucket.Object(s.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return zero, fmt.Errorf("gcs read for %s: %w", key, ErrNotFound)
		}
		return zero, fmt.Errorf("gcs read for %s: %w", key, err)
	}
	defer r.Close()

	var value V
	if err := json.NewDecoder(r).Decode(&value); err != nil {
		return zero, fmt.Errorf("failed to decode object %s: %w", key, err)
	}
	return value, nil
}

// Close is a no-op as the storage client's lifecycle is managed externally.
func (s *GCSStore[V]) Close() error {
	return nil
}
