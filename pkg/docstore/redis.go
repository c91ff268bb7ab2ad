package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis document store.
type RedisConfig struct {
	Addr      string `envconfig:"ADDR" default:"localhost:6379"`
	Password  string `envconfig:"PASSWORD"`
	DB        int    `envconfig:"DB" default:"0"`
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"comments:"`
}

// RedisStore keeps each document as a JSON string under <prefix><key>, without expiry.
type RedisStore[V any] struct {
	redisClient *redis.Client
	keyPrefix   string
	logger      zerolog.Logger
}

// NewRedisStore creates and connects a new RedisStore. It pings the Redis server
// to ensure connectivity before returning.
func NewRedisStore[V any](ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore[V], error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return &RedisStore[V]{
		redisClient: rdb,
		keyPrefix:   cfg.KeyPrefix,
		logger:      logger.With().Str("component", "RedisStore").Logger(),
	}, nil
}

// Upsert overwrites the document stored under key. Redis does not report write
// timestamps.
func (s *RedisStore[V]) Upsert(ctx context.Context, key string, doc V) (WriteResult, error) {
	if key == "" {
		return WriteResult{}, NewPersistError(key, ErrEmptyKey)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return WriteResult{}, NewPersistError(key, fmt.Errorf("failed to marshal document: %w", err))
	}

	if err := s.redisClient.Set(ctx, s.keyPrefix+key, jsonData, 0).Err(); err != nil {
		return WriteResult{}, NewPersistError(key, fmt.Errorf("failed to set in redis: %w", err))
	}

	s.logger.Debug().Str("key", key).Msg("Successfully stored document in Redis.")
	return WriteResult{DocumentID: key}, nil
}

// Fetch reads a document back from Redis.
func (s *RedisStore[V]) Fetch(ctx context.Context, key string) (V, error) {
	var zero V
	data, err := s.redisClient.Get(ctx, s.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, fmt.Errorf("redis get for %s: %w", key, ErrNotFound)
		}
		return zero, fmt.Errorf("redis get for %s: %w", key, err)
	}

	var value V
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal document %s: %w", key, err)
	}
	return value, nil
}

// Close closes the Redis client connection.
func (s *RedisStore[V]) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.redisClient.Close()
	}
	return nil
}
