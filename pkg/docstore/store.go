// Package docstore provides keyed document stores with create-or-replace semantics.
package docstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is wrapped by Fetch when no document exists for a key.
var ErrNotFound = errors.New("document not found")

// WriteResult is what a store confirms after an upsert. Stores report timestamps
// only when they have them; a zero time means "not reported".
type WriteResult struct {
	DocumentID string
	CreateTime time.Time
	UpdateTime time.Time
}

// DocumentWriter upserts a single document under a caller-supplied key. Writing the
// same key twice replaces the earlier document, it never adds a second one.
// Failures are returned as *PersistError.
type DocumentWriter[V any] interface {
	Upsert(ctx context.Context, key string, doc V) (WriteResult, error)
}

// Store is a DocumentWriter that can also read documents back.
type Store[V any] interface {
	DocumentWriter[V]
	// Fetch retrieves a document by key. A missing key returns an error wrapping ErrNotFound.
	Fetch(ctx context.Context, key string) (V, error)
	io.Closer
}
