// Package questions turns live chat messages into Question records and persists
// them idempotently, keyed by the upstream message id.
package questions

import (
	"context"
	"strings"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
)

// Question is the stored form of one chat message.
type Question struct {
	ID        string `json:"id" firestore:"id"`
	Username  string `json:"username" firestore:"username"`
	Message   string `json:"message" firestore:"message"`
	Timestamp string `json:"timestamp" firestore:"timestamp"`
}

// FormatTimestamp renders an upstream event time in the canonical stored form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ToQuestion maps a parsed chat event to a Question. Only chat messages (PRIVMSG)
// produce one; every other event kind returns false.
func ToQuestion(event twitch.Message) (Question, bool) {
	switch msg := event.(type) {
	case *twitch.PrivateMessage:
		return Question{
			ID:        msg.ID,
			Username:  msg.User.Name,
			Message:   msg.Message,
			Timestamp: FormatTimestamp(msg.Time),
		}, true
	default:
		return Question{}, false
	}
}

// NewQuestionTransformer returns a MessageTransformer that parses the raw IRC line
// carried in the message payload and keeps only chat messages.
func NewQuestionTransformer() messagepipeline.MessageTransformer[Question] {
	return func(_ context.Context, msg *messagepipeline.Message) (*Question, bool, error) {
		question, ok := ToQuestion(twitch.ParseMessage(strings.TrimRight(string(msg.Payload), "\r\n")))
		if !ok {
			return nil, true, nil
		}
		return &question, false, nil
	}
}
