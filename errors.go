package shardq

import (
	"errors"
	"fmt"

	"github.com/shardq/shardq/internal/bucket"
	"github.com/shardq/shardq/storage"
)

var (
	// ErrBucketIDConflict is returned when a caller-supplied bucket id
	// disagrees with one already embedded in the tuple. No RPC is issued.
	ErrBucketIDConflict = bucket.ErrIDConflict

	// ErrNoBucketField is returned when the space format lacks the
	// reserved bucket_id slot.
	ErrNoBucketField = bucket.ErrNoBucketField

	// ErrSpaceNotFound is returned when a request names an unknown space.
	ErrSpaceNotFound = errors.New("space not found")
)

// ValidationError reports malformed conditions or update operations,
// rejected before any RPC is issued.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ValidationError struct {
	cause error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// RoutingError reports a failure to resolve a target partition: unknown
// space, bucket id conflict, metadata fetch failure. Fail-fast, no RPC.
//
// The original underlying error can be accessed via errors.Unwrap, so
// errors.Is(err, ErrBucketIDConflict) still matches through it.
type RoutingError struct {
	Space string
	cause error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing %q: %v", e.Space, e.cause)
}

func (e *RoutingError) Unwrap() error { return e.cause }

// PartitionError reports one partition's failed RPC. For batch writes it
// carries the offending tuple; the partition's already-applied prefix is
// committed and reported separately.
type PartitionError = storage.Error

// BatchError aggregates per-partition failures of one batch write.
// There is at most one entry per partition per call.
type BatchError struct {
	Partitions []*PartitionError
}

func (e *BatchError) Error() string {
	if len(e.Partitions) == 1 {
		return fmt.Sprintf("batch failed on 1 partition: %v", e.Partitions[0])
	}
	return fmt.Sprintf("batch failed on %d partitions: first: %v", len(e.Partitions), e.Partitions[0])
}

// Unwrap exposes the per-partition errors to errors.Is/As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Partitions))
	for i, p := range e.Partitions {
		out[i] = p
	}
	return out
}

// translateError normalizes internal errors into the public contract.
func (r *Router) translateError(space string, err error) error {
	if err == nil {
		return nil
	}

	if kind, ok := storage.KindOf(err); ok && kind == storage.KindSpaceNotFound {
		r.stats.RecordSpaceNotFound()
		return &RoutingError{Space: space, cause: fmt.Errorf("%w: %w", ErrSpaceNotFound, err)}
	}
	if errors.Is(err, bucket.ErrIDConflict) || errors.Is(err, bucket.ErrNoBucketField) {
		return &RoutingError{Space: space, cause: err}
	}

	return err
}
