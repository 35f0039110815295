package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/shardq/shardq/model"
)

// ErrorKind classifies storage errors so callers branch on a tagged kind
// instead of matching message text.
type ErrorKind string

const (
	KindDuplicateKey   ErrorKind = "duplicate_key"
	KindSchemaMismatch ErrorKind = "schema_mismatch"
	KindUnknownField   ErrorKind = "unknown_field"
	KindSpaceNotFound  ErrorKind = "space_not_found"
	KindTimeout        ErrorKind = "timeout"
	KindUnavailable    ErrorKind = "unavailable"
	KindInternal       ErrorKind = "internal"
)

// Error is a structured storage-node error.
//
// Tuple is set for batch writes and points at the first tuple the node
// refused; the preceding prefix of the sub-batch is already committed.
// RequestID is the correlation id of the failed RPC, taken from the
// CallOptions that accompanied it.
type Error struct {
	Kind      ErrorKind
	Node      string
	Space     string
	Msg       string
	RequestID string
	Tuple     model.Tuple
	cause     error
}

// NewError builds a storage error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// WrapError tags an underlying error with a kind.
func WrapError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), cause: err}
}

// WithNode returns a copy attributed to a node.
func (e *Error) WithNode(node string) *Error {
	out := *e
	out.Node = node
	return &out
}

// WithSpace returns a copy attributed to a space.
func (e *Error) WithSpace(space string) *Error {
	out := *e
	out.Space = space
	return &out
}

// WithTuple returns a copy carrying the offending tuple.
func (e *Error) WithTuple(t model.Tuple) *Error {
	out := *e
	out.Tuple = t
	return &out
}

// WithRequestID returns a copy carrying the RPC correlation id.
func (e *Error) WithRequestID(id string) *Error {
	out := *e
	out.RequestID = id
	return &out
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Node != "" && e.Space != "":
		s = fmt.Sprintf("storage %s [%s/%s]: %s", e.Kind, e.Node, e.Space, e.Msg)
	case e.Node != "":
		s = fmt.Sprintf("storage %s [%s]: %s", e.Kind, e.Node, e.Msg)
	default:
		s = fmt.Sprintf("storage %s: %s", e.Kind, e.Msg)
	}
	if e.RequestID != "" {
		s += fmt.Sprintf(" (request %s)", e.RequestID)
	}
	return s
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two storage errors by kind, so sentinel comparisons like
// errors.Is(err, storage.NewError(storage.KindTimeout, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the storage error kind from an error chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsStaleSchema reports whether the error chain signals that the caller's
// cached schema is stale relative to the node.
func IsStaleSchema(err error) bool {
	kind, ok := KindOf(err)
	return ok && (kind == KindSchemaMismatch || kind == KindUnknownField)
}

// AsError extracts a structured storage error from a chain, wrapping
// untagged errors (context deadline, transport) as KindTimeout or
// KindInternal so batch aggregation always has partition attribution.
// The request id of the failed RPC is attached when the node left it
// blank.
func AsError(err error, node, requestID string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Node == "" {
			e = e.WithNode(node)
		}
		if e.RequestID == "" && requestID != "" {
			e = e.WithRequestID(requestID)
		}
		return e
	}
	kind := KindInternal
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Node: node, Msg: err.Error(), RequestID: requestID, cause: err}
}
