package messagepipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// DefaultMaxLineBytes fits the largest line an IRCv3 server may send: 8191 bytes
// of tags plus a 512 byte message.
const DefaultMaxLineBytes = 8191 + 1 + 512

// LineLimits bounds the size of a raw event line accepted by WithLineLimits.
type LineLimits struct {
	MinBytes int `envconfig:"MIN_LINE_BYTES" default:"1" validate:"min=0"`
	MaxBytes int `envconfig:"MAX_LINE_BYTES" default:"8704" validate:"min=0"`
}

// WithLineLimits wraps a MessageTransformer so that payloads outside the configured
// size range are skipped before the inner transformer ever sees them.
func WithLineLimits[T any](
	innerTransformer MessageTransformer[T],
	limits LineLimits,
	logger zerolog.Logger,
) MessageTransformer[T] {
	return func(ctx context.Context, msg *Message) (*T, bool, error) {
		payloadLen := len(msg.Payload)
		if payloadLen < limits.MinBytes || (limits.MaxBytes > 0 && payloadLen > limits.MaxBytes) {
			logger.Warn().Str("msg_id", msg.ID).Int("payload_size", payloadLen).Msg("Skipping message with out of range payload size.")
			return nil, true, nil
		}
		return innerTransformer(ctx, msg)
	}
}
