package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-questionflow/pkg/questions"
	"github.com/illmade-knight/go-questionflow/pkg/twitchconsumer"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	sourceTwitch = "twitch"
	sourcePubSub = "pubsub"

	backendFirestore = "firestore"
	backendRedis     = "redis"
	backendGCS       = "gcs"
	backendMemory    = "memory"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogPretty       bool          `envconfig:"LOG_PRETTY" default:"false"`
	Source          string        `envconfig:"SOURCE" default:"twitch" validate:"oneof=twitch pubsub"`
	StoreBackend    string        `envconfig:"STORE_BACKEND" default:"firestore" validate:"oneof=firestore redis gcs memory"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0"`

	questions.ServiceConfig

	Twitch    twitchconsumer.Config                      `envconfig:"TWITCH"`
	PubSub    messagepipeline.GooglePubsubConsumerConfig `envconfig:"PUBSUB"`
	Firestore docstore.FirestoreConfig                   `envconfig:"FIRESTORE"`
	Redis     docstore.RedisConfig                       `envconfig:"REDIS"`
	GCS       docstore.GCSConfig                         `envconfig:"GCS"`
}

// LoadConfig reads an optional .env file, then the environment, and validates
// the result.
func LoadConfig(dotEnvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotEnvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the settings required by the selected
// source and store backend.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Source == sourcePubSub && c.PubSub.SubscriptionID == "" {
		return fmt.Errorf("invalid configuration: PUBSUB_SUBSCRIPTION_ID is required when SOURCE=pubsub")
	}
	if c.StoreBackend == backendGCS && c.GCS.BucketName == "" {
		return fmt.Errorf("invalid configuration: GCS_BUCKET is required when STORE_BACKEND=gcs")
	}
	return nil
}
