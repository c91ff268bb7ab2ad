package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore document store.
type FirestoreConfig struct {
	ProjectID       string `envconfig:"PROJECT_ID"`
	DatabaseID      string `envconfig:"DATABASE_ID" default:"(default)"`
	CollectionName  string `envconfig:"COLLECTION" default:"comments"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
}

// NewFirestoreClient creates a Firestore client from a service account credentials
// file, or from Application Default Credentials when no file is configured.
func NewFirestoreClient(ctx context.Context, cfg *FirestoreConfig, logger zerolog.Logger) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info().Str("credentials_file", cfg.CredentialsFile).Msg("Using specified credentials file for Firestore client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for Firestore client.")
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	logger.Info().Str("project_id", projectID).Str("database_id", databaseID).Msg("Firestore client created successfully.")
	return client, nil
}

// FirestoreStore upserts documents into a single Firestore collection keyed by
// document ID.
type FirestoreStore[V any] struct {
	client         *firestore.Client
	collectionName string
	logger         zerolog.Logger
}

// NewFirestoreStore creates a new generic FirestoreStore.
func NewFirestoreStore[V any](
	cfg *FirestoreConfig,
	client *firestore.Client,
	logger zerolog.Logger,
) (*FirestoreStore[V], error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("firestore collection name is required")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestoreStore initialized.")

	return &FirestoreStore[V]{
		client:         client,
		collectionName: cfg.CollectionName,
		logger:         logger.With().Str("component", "FirestoreStore").Str("collection", cfg.CollectionName).Logger(),
	}, nil
}

// Upsert creates the document or fully replaces an existing one. Firestore reports
// only the update time of a Set.
func (s *FirestoreStore[V]) Upsert(ctx context.Context, key string, doc V) (WriteResult, error) {
	if key == "" {
		return WriteResult{}, NewPersistError(key, ErrEmptyKey)
	}
	docRef := s.client.Collection(s.collectionName).Doc(key)
	result, err := docRef.Set(ctx, doc)
	if err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Firestore set failed.")
		return WriteResult{}, NewPersistError(key, fmt.Errorf("firestore set for %s: %w", key, err))
	}

	s.logger.Debug().Str("key", key).Msg("Successfully wrote document to Firestore.")
	return WriteResult{DocumentID: docRef.ID, UpdateTime: result.UpdateTime}, nil
}

// Fetch retrieves a single document from Firestore by its key.
func (s *FirestoreStore[V]) Fetch(ctx context.Context, key string) (V, error) {
	var zero V
	if key == "" {
		return zero, ErrEmptyKey
	}
	docSnap, err := s.client.Collection(s.collectionName).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return zero, fmt.Errorf("firestore get for %s: %w", key, ErrNotFound)
		}
		return zero, fmt.Errorf("firestore get for %s: %w", key, err)
	}

	var value V
	if err := docSnap.DataTo(&value); err != nil {
		return zero, fmt.Errorf("firestore DataTo for %s: %w", key, err)
	}
	return value, nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreStore[V]) Close() error {
	return nil
}
