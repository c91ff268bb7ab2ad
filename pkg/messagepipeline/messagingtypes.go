package messagepipeline

import (
	"time"
)

// Message is the canonical, internal representation of a raw upstream event flowing
// through the pipeline. It contains the raw data, metadata, and acknowledgment handles.
type Message struct {
	// MessageData contains the core payload.
	MessageData

	// Attributes holds metadata from the source (e.g., the IRC command or channel).
	Attributes map[string]string

	// Ack is a function to call to signal that processing was successful and the
	// message can be permanently removed from the source. It may be nil for sources
	// without acknowledgement semantics.
	Ack func()

	// Nack is a function to call to signal that processing has failed. Sources that
	// cannot redeliver treat it as a drop. It may be nil.
	Nack func()
}

// MessageData holds the essential payload of a message.
type MessageData struct {
	// ID is the unique identifier of the event, taken from the upstream when it has one.
	ID string `json:"id"`

	// Payload is the raw byte content of the event (one IRC line for chat sources).
	Payload []byte `json:"payload"`

	// PublishTime is the time the event was received or published upstream.
	PublishTime time.Time `json:"publishTime"`
}

func (m Message) ack() {
	if m.Ack != nil {
		m.Ack()
	}
}

func (m Message) nack() {
	if m.Nack != nil {
		m.Nack()
	}
}
