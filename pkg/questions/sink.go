package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/illmade-knight/go-questionflow/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/illmade-knight/go-questionflow/pkg/questions"

// Sink persists questions through a DocumentWriter, one upsert per question, keyed
// by the question id. It never retries.
type Sink struct {
	writer docstore.DocumentWriter[Question]
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewSink creates a Sink writing to writer.
func NewSink(writer docstore.DocumentWriter[Question], logger zerolog.Logger) (*Sink, error) {
	if writer == nil {
		return nil, fmt.Errorf("document writer cannot be nil")
	}
	return &Sink{
		writer: writer,
		logger: logger.With().Str("component", "QuestionSink").Logger(),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Persist upserts q. Any returned error is a *docstore.PersistError.
func (s *Sink) Persist(ctx context.Context, q Question) (docstore.WriteResult, error) {
	ctx, span := s.tracer.Start(ctx, "questions.persist", trace.WithAttributes(attribute.String("question.id", q.ID)))
	defer span.End()

	start := time.Now()
	result, err := s.persist(ctx, q)
	persistDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		persistErr := asPersistError(q.ID, err)
		persistTotal.WithLabelValues("failure", string(persistErr.Kind)).Inc()
		span.RecordError(persistErr)
		span.SetStatus(codes.Error, string(persistErr.Kind))
		return docstore.WriteResult{}, persistErr
	}
	persistTotal.WithLabelValues("success", "").Inc()
	return result, nil
}

func (s *Sink) persist(ctx context.Context, q Question) (docstore.WriteResult, error) {
	if q.ID == "" {
		return docstore.WriteResult{}, docstore.NewPersistError(q.ID, docstore.ErrEmptyKey)
	}
	return s.writer.Upsert(ctx, q.ID, q)
}

// Process is the StreamProcessor for questions: it logs the incoming question,
// persists it and logs what the store confirmed. A failed write is returned to the
// pipeline, which logs it and moves on to the next event.
func (s *Sink) Process(ctx context.Context, original messagepipeline.Message, q *Question) error {
	s.logger.Info().Str("username", q.Username).Str("message", q.Message).Msg("Question received.")

	result, err := s.Persist(ctx, *q)
	if err != nil {
		return err
	}

	event := s.logger.Info().Str("msg_id", original.ID).Str("document_id", result.DocumentID)
	if !result.CreateTime.IsZero() {
		event = event.Time("created", result.CreateTime)
	}
	if !result.UpdateTime.IsZero() {
		event = event.Time("updated", result.UpdateTime)
	}
	event.Msg("Question persisted.")
	return nil
}

func asPersistError(key string, err error) *docstore.PersistError {
	var persistErr *docstore.PersistError
	if errors.As(err, &persistErr) {
		return persistErr
	}
	return docstore.NewPersistError(key, err)
}
