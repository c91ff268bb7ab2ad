package questions

import (
	"context"
	"errors"
	"testing"

	"github.com/illmade-knight/go-questionflow/pkg/docstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Upsert(_ context.Context, _ string, _ Question) (docstore.WriteResult, error) {
	return docstore.WriteResult{}, errors.New("OOM command not allowed when used memory > 'maxmemory'")
}

func TestSink_Persist_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	successes := persistTotal.WithLabelValues("success", "")
	quotaFailures := persistTotal.WithLabelValues("failure", string(docstore.KindQuota))
	invalidFailures := persistTotal.WithLabelValues("failure", string(docstore.KindInvalid))
	beforeSuccess := testutil.ToFloat64(successes)
	beforeQuota := testutil.ToFloat64(quotaFailures)
	beforeInvalid := testutil.ToFloat64(invalidFailures)

	okSink, err := NewSink(docstore.NewInMemoryStore[Question](), zerolog.Nop())
	require.NoError(t, err)
	badSink, err := NewSink(failingWriter{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = okSink.Persist(ctx, Question{ID: "m1"})
	require.NoError(t, err)
	_, err = badSink.Persist(ctx, Question{ID: "m2"})
	require.Error(t, err)
	_, err = okSink.Persist(ctx, Question{})
	require.Error(t, err)

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(successes))
	assert.Equal(t, beforeQuota+1, testutil.ToFloat64(quotaFailures))
	assert.Equal(t, beforeInvalid+1, testutil.ToFloat64(invalidFailures))
}
