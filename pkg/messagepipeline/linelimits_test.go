package messagepipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLineLimits(t *testing.T) {
	var innerCalled bool
	inner := func(ctx context.Context, msg *messagepipeline.Message) (*streamTestPayload, bool, error) {
		innerCalled = true
		return &streamTestPayload{Data: string(msg.Payload)}, false, nil
	}

	testCases := []struct {
		name            string
		payload         string
		limits          messagepipeline.LineLimits
		expectSkip      bool
		expectInnerCall bool
	}{
		{
			name:            "payload within range",
			payload:         "PING :tmi.twitch.tv",
			limits:          messagepipeline.LineLimits{MinBytes: 1, MaxBytes: 64},
			expectInnerCall: true,
		},
		{
			name:       "empty payload",
			payload:    "",
			limits:     messagepipeline.LineLimits{MinBytes: 1, MaxBytes: 64},
			expectSkip: true,
		},
		{
			name:       "payload too long",
			payload:    strings.Repeat("x", 65),
			limits:     messagepipeline.LineLimits{MinBytes: 1, MaxBytes: 64},
			expectSkip: true,
		},
		{
			name:            "payload exactly max size",
			payload:         strings.Repeat("x", 64),
			limits:          messagepipeline.LineLimits{MinBytes: 1, MaxBytes: 64},
			expectInnerCall: true,
		},
		{
			name:            "zero max disables the upper bound",
			payload:         strings.Repeat("x", 10000),
			limits:          messagepipeline.LineLimits{MinBytes: 1},
			expectInnerCall: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			innerCalled = false
			transformer := messagepipeline.WithLineLimits(inner, tc.limits, zerolog.Nop())
			msg := &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "line", Payload: []byte(tc.payload)},
			}

			payload, skip, err := transformer(context.Background(), msg)

			require.NoError(t, err)
			assert.Equal(t, tc.expectSkip, skip)
			assert.Equal(t, tc.expectInnerCall, innerCalled)
			if tc.expectInnerCall {
				require.NotNil(t, payload)
				assert.Equal(t, tc.payload, payload.Data)
			}
		})
	}
}
