package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrEmptyKey is returned when a document is written without a key.
var ErrEmptyKey = errors.New("document key cannot be empty")

// Kind is a coarse classification of why a store rejected a write.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindNetwork       Kind = "network"
	KindSerialization Kind = "serialization"
	KindQuota         Kind = "quota"
	KindInvalid       Kind = "invalid"
	KindUnknown       Kind = "unknown"
)

// PersistError is the single error type returned for a failed write. Kind is for
// logging and metrics only; every kind is handled the same way by callers.
type PersistError struct {
	Key  string
	Kind Kind
	Err  error
}

// NewPersistError wraps err for the given key, classifying the cause.
func NewPersistError(key string, err error) *PersistError {
	return &PersistError{Key: key, Kind: Classify(err), Err: err}
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %q failed (%s): %v", e.Key, e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Classify maps store client errors (gRPC status, Google API HTTP errors, Redis
// replies, network and encoding errors) onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyKey) {
		return KindInvalid
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	var unsupportedType *json.UnsupportedTypeError
	var unsupportedValue *json.UnsupportedValueError
	var marshalerErr *json.MarshalerError
	if errors.As(err, &unsupportedType) || errors.As(err, &unsupportedValue) || errors.As(err, &marshalerErr) {
		return KindSerialization
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyHTTP(apiErr.Code)
	}

	if st, ok := status.FromError(err); ok {
		return classifyGRPC(st.Code())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return classifyRedisReply(err)
}

// classifyRedisReply looks for a Redis error reply anywhere in the wrap chain.
func classifyRedisReply(err error) Kind {
	for ; err != nil; err = errors.Unwrap(err) {
		msg := err.Error()
		switch {
		case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"), strings.HasPrefix(msg, "NOPERM"):
			return KindAuth
		case strings.HasPrefix(msg, "OOM"):
			return KindQuota
		}
	}
	return KindUnknown
}

func classifyGRPC(code codes.Code) Kind {
	switch code {
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindAuth
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted:
		return KindNetwork
	case codes.ResourceExhausted:
		return KindQuota
	case codes.InvalidArgument, codes.OutOfRange:
		return KindSerialization
	case codes.FailedPrecondition, codes.NotFound:
		return KindInvalid
	default:
		return KindUnknown
	}
}

func classifyHTTP(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindQuota
	case code == http.StatusBadRequest:
		return KindSerialization
	case code == http.StatusRequestTimeout, code >= 500:
		return KindNetwork
	case code == http.StatusNotFound, code == http.StatusPreconditionFailed:
		return KindInvalid
	default:
		return KindUnknown
	}
}
