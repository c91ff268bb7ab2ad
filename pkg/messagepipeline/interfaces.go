package messagepipeline

import (
	"context"
)

// ====================================================================================
// This file defines the core interfaces and function types for building an ingestion
// pipeline. It outlines the contracts for consuming raw upstream events, transforming
// them into records and handing each record to a sink.
// ====================================================================================

// --- Stage 1: Consumer ---

// MessageConsumer defines the interface for an event source (e.g., a chat connection
// or a Pub/Sub replay subscription). It is responsible for fetching raw events and
// handing them off to the pipeline.
type MessageConsumer interface {
	// Messages returns a read-only channel from which pipeline workers will receive messages.
	// The channel is closed when the upstream source is exhausted or disconnected.
	Messages() <-chan Message
	// Start begins the consumption process (e.g., by connecting to the upstream).
	Start(ctx context.Context) error
	// Stop gracefully ceases message consumption and waits for background tasks to finish.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// --- Stage 2: Transformer ---

// MessageTransformer defines a function that transforms a generic `Message` into a
// new, specific, structured record of type T.
//
// The 'skip' return value is set to true to signal that this message carries no record
// and should be acknowledged without further processing. Skipping is a filter, not a
// failure; an error is reserved for messages that could not be interpreted at all.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// --- Stage 3: Processor ---

// StreamProcessor defines the contract for an endpoint that handles transformed
// records of type T one by one. Returning an error causes the pipeline to log and
// Nack the message; it never stops the pipeline.
type StreamProcessor[T any] func(ctx context.Context, original Message, payload *T) error
