// Command questionflow reads live Twitch chat (or a Pub/Sub replay of it) and
// upserts every chat message as a question document, keyed by message id.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-questionflow/pkg/microservice"
	"github.com/illmade-knight/go-questionflow/pkg/questions"
	"github.com/illmade-knight/go-questionflow/pkg/twitchconsumer"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "questionflow: %v\n", microservice.NewStartupError("config", err))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger, sources{newStore: newStore, newConsumer: newConsumer})
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("questionflow failed to start.")
		os.Exit(1)
	}
}

// sources builds the store and the event source; tests replace them.
type sources struct {
	newStore    func(ctx context.Context, cfg *Config, logger zerolog.Logger) (docstore.Store[questions.Question], error)
	newConsumer func(ctx context.Context, cfg *Config, logger zerolog.Logger) (messagepipeline.MessageConsumer, func(), error)
}

// run returns an error only for failures that stop the service from starting,
// including a Twitch connection that never completed its login. A signal or an
// upstream disconnect after a successful start both end in a clean shutdown.
func run(ctx context.Context, cfg *Config, logger zerolog.Logger, src sources) error {
	store, err := src.newStore(ctx, cfg, logger)
	if err != nil {
		return microservice.NewStartupError("store", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing document store.")
		}
	}()

	consumer, closeSource, err := src.newConsumer(ctx, cfg, logger)
	if err != nil {
		return microservice.NewStartupError("event source", err)
	}
	defer closeSource()

	service, err := questions.NewQuestionService(cfg.ServiceConfig, consumer, store, logger)
	if err != nil {
		return microservice.NewStartupError("service", err)
	}
	if err := service.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received.")
	case <-service.Done():
		var upstreamErr error
		if reporter, ok := consumer.(interface{ Err() error }); ok {
			upstreamErr = reporter.Err()
		}
		if errors.Is(upstreamErr, twitchconsumer.ErrConnectFailed) {
			logger.Error().Err(upstreamErr).Msg("Could not connect to the upstream event source, shutting down.")
			runErr = microservice.NewStartupError("event source", upstreamErr)
		} else {
			logger.Warn().AnErr("cause", upstreamErr).Msg("Upstream event source disconnected, shutting down.")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Question service did not shut down cleanly.")
	}
	logger.Info().Msg("questionflow stopped.")
	return runErr
}

func newLogger(level string, pretty bool, out io.Writer) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(logLevel).With().Timestamp().Str("app", "questionflow").Logger()
}

// storeCloser closes the client behind a store that does not own it.
type storeCloser struct {
	docstore.Store[questions.Question]
	closeClient func() error
}

func (s storeCloser) Close() error {
	return s.closeClient()
}

func newStore(ctx context.Context, cfg *Config, logger zerolog.Logger) (docstore.Store[questions.Question], error) {
	switch cfg.StoreBackend {
	case backendFirestore:
		client, err := docstore.NewFirestoreClient(ctx, &cfg.Firestore, logger)
		if err != nil {
			return nil, err
		}
		store, err := docstore.NewFirestoreStore[questions.Question](&cfg.Firestore, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return storeCloser{Store: store, closeClient: client.Close}, nil
	case backendRedis:
		return docstore.NewRedisStore[questions.Question](ctx, &cfg.Redis, logger)
	case backendGCS:
		client, err := docstore.NewGCSClient(ctx, &cfg.GCS, logger)
		if err != nil {
			return nil, err
		}
		store, err := docstore.NewGCSStore[questions.Question](&cfg.GCS, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return storeCloser{Store: store, closeClient: client.Close}, nil
	case backendMemory:
		logger.Warn().Msg("Using in-memory store, questions will not survive a restart.")
		return docstore.NewInMemoryStore[questions.Question](), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newConsumer(ctx context.Context, cfg *Config, logger zerolog.Logger) (messagepipeline.MessageConsumer, func(), error) {
	switch cfg.Source {
	case sourceTwitch:
		if cfg.Twitch.Anonymous() {
			logger.Info().Msg("Connecting to Twitch chat anonymously.")
		}
		client := twitchconsumer.NewTwitchClient(&cfg.Twitch)
		consumer, err := twitchconsumer.NewTwitchConsumer(&cfg.Twitch, client, logger)
		if err != nil {
			return nil, nil, err
		}
		return consumer, func() {}, nil
	case sourcePubSub:
		projectID := cfg.PubSub.ProjectID
		if projectID == "" {
			projectID = pubsub.DetectProjectID
		}
		client, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub.NewClient: %w", err)
		}
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&cfg.PubSub, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return consumer, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
