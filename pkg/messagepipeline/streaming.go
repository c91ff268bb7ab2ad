package messagepipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StreamingService orchestrates a pipeline that consumes messages, transforms them
// individually, and immediately sends them to a streaming processor function.
//
// With a single worker, messages are handled strictly in arrival order and processor
// calls never overlap. More workers fan the processor calls out and give up that
// ordering.
type StreamingService[T any] struct {
	numWorkers     int
	processTimeout time.Duration
	consumer       MessageConsumer
	transformer    MessageTransformer[T]
	processor      StreamProcessor[T]
	logger         zerolog.Logger
	wg             sync.WaitGroup
	stopping       chan struct{}
	stopOnce       sync.Once
	doneChan       chan struct{}
}

// StreamingServiceConfig holds configuration for a StreamingService.
type StreamingServiceConfig struct {
	// NumWorkers is the number of concurrent processing workers. The default of 1
	// preserves arrival order; values above 1 relax it.
	NumWorkers int `envconfig:"NUM_WORKERS" default:"1" validate:"min=1,max=64"`
	// ProcessTimeout bounds a single transform+process call. Zero leaves the bound to
	// the processor's own client timeouts.
	ProcessTimeout time.Duration `envconfig:"PROCESS_TIMEOUT" default:"0s"`
}

// NewStreamingService creates a new StreamingService.
func NewStreamingService[T any](
	cfg StreamingServiceConfig,
	consumer MessageConsumer,
	transformer MessageTransformer[T],
	processor StreamProcessor[T],
	logger zerolog.Logger,
) (*StreamingService[T], error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if transformer == nil {
		return nil, fmt.Errorf("transformer cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}

	return &StreamingService[T]{
		numWorkers:     cfg.NumWorkers,
		processTimeout: cfg.ProcessTimeout,
		consumer:       consumer,
		transformer:    transformer,
		processor:      processor,
		logger:         logger.With().Str("service", "StreamingService").Logger(),
		stopping:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}, nil
}

// Start begins the service operation. It starts the consumer and then spawns
// the processing workers. It returns once the workers are running.
func (s *StreamingService[T]) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting streaming service...")

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}
	s.logger.Info().Msg("Message consumer started.")

	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Starting processing workers...")
	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}
	go func() {
		s.wg.Wait()
		close(s.doneChan)
	}()

	s.logger.Info().Msg("Streaming service started successfully.")
	return nil
}

// Done returns a channel that is closed once every worker has exited, whether
// because the consumer's channel closed, Stop was called or the start context ended.
func (s *StreamingService[T]) Done() <-chan struct{} {
	return s.doneChan
}

// Stop gracefully shuts down the entire service in the correct order. Workers stop
// pulling new messages immediately; a message already being processed is allowed
// to finish until ctx expires.
func (s *StreamingService[T]) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping streaming service...")
	s.stopOnce.Do(func() { close(s.stopping) })

	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	select {
	case <-s.doneChan:
		s.logger.Info().Msg("All processing workers completed gracefully.")
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for processing workers to finish.")
		return ctx.Err()
	}

	s.logger.Info().Msg("Streaming service stopped.")
	return nil
}

// worker is the main processing loop for each concurrent worker.
func (s *StreamingService[T]) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	// In-flight work must survive cancellation of the start context so that a write
	// is never cut off half way through shutdown.
	processCtx := context.WithoutCancel(ctx)
	s.logger.Debug().Int("worker_id", workerID).Msg("Processing worker started.")
	for {
		select {
		case <-s.stopping:
			s.logger.Info().Int("worker_id", workerID).Msg("Processing worker stopping on request.")
			return
		case <-ctx.Done():
			s.logger.Info().Int("worker_id", workerID).Msg("Processing worker shutting down due to context cancellation.")
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				s.logger.Info().Int("worker_id", workerID).Msg("Consumer channel closed, worker exiting.")
				return
			}
			s.processConsumedMessage(processCtx, msg, workerID)
		}
	}
}

// processConsumedMessage contains the core logic for transforming and processing a single message.
func (s *StreamingService[T]) processConsumedMessage(ctx context.Context, msg Message, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("msg_id", msg.ID).Int("worker_id", workerID).Msg("Recovered from panic while processing message, Nacking.")
			msg.nack()
		}
	}()

	if s.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.processTimeout)
		defer cancel()
	}

	s.logger.Debug().Int("worker_id", workerID).Str("msg_id", msg.ID).Msg("Transforming message.")

	transformedPayload, skip, err := s.transformer(ctx, &msg)
	if err != nil {
		s.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Failed to transform message, Nacking.")
		msg.nack()
		return
	}

	if skip {
		s.logger.Debug().Str("msg_id", msg.ID).Msg("Transformer signaled to skip message, Acking.")
		msg.ack()
		return
	}

	if err := s.processor(ctx, msg, transformedPayload); err != nil {
		s.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Processor failed to handle message, Nacking.")
		msg.nack()
		return
	}

	s.logger.Debug().Str("msg_id", msg.ID).Msg("Message processed successfully, Acking.")
	msg.ack()
}
