package shardq

import (
	"context"
	"iter"
	"time"

	"github.com/shardq/shardq/model"
)

// Query creates a fluent select builder for a space.
//
// Example:
//
//	rows, err := r.Query("accounts").
//	    Where(model.Gt("balance", int64(100))).
//	    First(10).
//	    Execute(ctx)
//
//	// Or with streaming:
//	for row, err := range r.Query("accounts").Where(model.Gt("balance", int64(0))).Stream(ctx) {
//	    if err != nil { break }
//	    process(row)
//	}
func (r *Router) Query(space string) *SelectBuilder {
	return &SelectBuilder{
		r:     r,
		space: space,
	}
}

// SelectBuilder is a fluent builder for constructing distributed reads.
// Terminal methods delegate to Select and Pairs, so routing, merging and
// pagination behave exactly as with the option-based API.
type SelectBuilder struct {
	r      *Router
	space  string
	conds  []model.Condition
	optFns []CallOption
}

// Where appends filter conditions. Multiple calls accumulate.
func (sb *SelectBuilder) Where(conds ...model.Condition) *SelectBuilder {
	sb.conds = append(sb.conds, conds...)
	return sb
}

// First limits the result to n tuples; negative n selects tail mode and
// requires After.
func (sb *SelectBuilder) First(n int) *SelectBuilder {
	sb.optFns = append(sb.optFns, WithFirst(n))
	return sb
}

// After resumes the read after the given tuple.
func (sb *SelectBuilder) After(t model.Tuple) *SelectBuilder {
	sb.optFns = append(sb.optFns, WithAfter(t))
	return sb
}

// BatchSize caps tuples per partition per fetch round.
func (sb *SelectBuilder) BatchSize(n int) *SelectBuilder {
	sb.optFns = append(sb.optFns, WithBatchSize(n))
	return sb
}

// Fields projects the result onto the named columns, in order.
func (sb *SelectBuilder) Fields(fields ...string) *SelectBuilder {
	sb.optFns = append(sb.optFns, WithFields(fields...))
	return sb
}

// BucketID pins the read to the partition owning the bucket.
func (sb *SelectBuilder) BucketID(id uint64) *SelectBuilder {
	sb.optFns = append(sb.optFns, WithBucketID(id))
	return sb
}

// Timeout bounds each storage RPC issued by the read.
func (sb *SelectBuilder) Timeout(d time.Duration) *SelectBuilder {
	sb.optFns = append(sb.optFns, WithTimeout(d))
	return sb
}

// ForceMapCall fans the read out to every partition even when a
// single-partition plan would be possible.
func (sb *SelectBuilder) ForceMapCall() *SelectBuilder {
	sb.optFns = append(sb.optFns, WithForceMapCall())
	return sb
}

// Execute runs the read and returns the merged result.
func (sb *SelectBuilder) Execute(ctx context.Context) ([]model.Tuple, error) {
	return sb.r.Select(ctx, sb.space, sb.conds, sb.optFns...)
}

// MustExecute runs the read, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SelectBuilder) MustExecute(ctx context.Context) []model.Tuple {
	rows, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return rows
}

// Stream returns the merged sequence lazily for memory-efficient
// processing. The iterator supports early termination by breaking from
// the loop, which stops further per-partition fetch rounds.
func (sb *SelectBuilder) Stream(ctx context.Context) iter.Seq2[model.Tuple, error] {
	return sb.r.Pairs(ctx, sb.space, sb.conds, sb.optFns...)
}

// Count executes the read and returns the number of matching tuples.
func (sb *SelectBuilder) Count(ctx context.Context) (int, error) {
	rows, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Exists checks if at least one tuple matches the read.
func (sb *SelectBuilder) Exists(ctx context.Context) (bool, error) {
	rows, err := sb.r.Select(ctx, sb.space, sb.conds, append(sb.optFns, WithFirst(1))...)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
