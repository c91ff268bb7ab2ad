package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-questionflow/pkg/microservice"
	"github.com/rs/zerolog"
)

// ServiceConfig holds the settings of a QuestionService. The parts are embedded so
// that their environment variables keep their unprefixed names.
type ServiceConfig struct {
	microservice.ServerConfig
	messagepipeline.StreamingServiceConfig
	messagepipeline.LineLimits
}

// NewServiceConfigDefaults returns a ServiceConfig with the defaults used in production.
func NewServiceConfigDefaults() ServiceConfig {
	return ServiceConfig{
		ServerConfig:           microservice.ServerConfig{HTTPPort: ":8080"},
		StreamingServiceConfig: messagepipeline.StreamingServiceConfig{NumWorkers: 1},
		LineLimits:             messagepipeline.LineLimits{MinBytes: 1, MaxBytes: messagepipeline.DefaultMaxLineBytes},
	}
}

// QuestionService wires a chat event source to a document store: raw events are
// parsed, chat messages become Questions and every Question is upserted by id.
type QuestionService struct {
	*microservice.BaseServer
	pipeline *messagepipeline.StreamingService[Question]
	logger   zerolog.Logger
}

var _ microservice.Service = (*QuestionService)(nil)

// NewQuestionService assembles the transformer, sink and streaming pipeline.
func NewQuestionService(
	cfg ServiceConfig,
	consumer messagepipeline.MessageConsumer,
	writer docstore.DocumentWriter[Question],
	logger zerolog.Logger,
) (*QuestionService, error) {
	serviceLogger := logger.With().Str("service", "QuestionService").Logger()

	sink, err := NewSink(writer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create question sink: %w", err)
	}

	transformer := messagepipeline.WithLineLimits(NewQuestionTransformer(), cfg.LineLimits, serviceLogger)
	pipeline, err := messagepipeline.NewStreamingService[Question](cfg.StreamingServiceConfig, consumer, transformer, sink.Process, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming pipeline: %w", err)
	}

	return &QuestionService{
		BaseServer: microservice.NewBaseServer(serviceLogger, cfg.HTTPPort),
		pipeline:   pipeline,
		logger:     serviceLogger,
	}, nil
}

// Start brings up the HTTP server and then the pipeline. Any failure is a
// *microservice.StartupError.
func (s *QuestionService) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting question service...")
	if err := s.BaseServer.Start(); err != nil {
		return microservice.NewStartupError("http server", err)
	}
	if err := s.pipeline.Start(ctx); err != nil {
		_ = s.BaseServer.Shutdown(context.Background())
		return microservice.NewStartupError("event source", err)
	}
	s.logger.Info().Msg("Question service started successfully.")
	return nil
}

// Done is closed once the pipeline has stopped, including after an upstream
// disconnect.
func (s *QuestionService) Done() <-chan struct{} {
	return s.pipeline.Done()
}

// Shutdown stops the pipeline, waiting for in-flight writes, then the HTTP server.
func (s *QuestionService) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down question service...")
	pipelineErr := s.pipeline.Stop(ctx)
	if pipelineErr != nil {
		s.logger.Error().Err(pipelineErr).Msg("Pipeline did not stop cleanly.")
	}
	serverErr := s.BaseServer.Shutdown(ctx)
	if err := errors.Join(pipelineErr, serverErr); err != nil {
		return err
	}
	s.logger.Info().Msg("Question service stopped.")
	return nil
}
