package shardq

import (
	"sync"
	"time"
)

// Operation names a router-facing operation for stats and logs.
type Operation string

const (
	OpInsert      Operation = "insert"
	OpReplace     Operation = "replace"
	OpUpdate      Operation = "update"
	OpUpsert      Operation = "upsert"
	OpDelete      Operation = "delete"
	OpGet         Operation = "get"
	OpSelect      Operation = "select"
	OpPairs       Operation = "pairs"
	OpBatchInsert Operation = "batch_insert"
	OpBatchUpsert Operation = "batch_upsert"
	OpTruncate    Operation = "truncate"
	OpLen         Operation = "len"
	OpMin         Operation = "min"
	OpMax         Operation = "max"
)

// Status is the outcome label of a completed call.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// StatsCollector receives router observability events.
//
// Reporting is fire-and-forget: implementations must not block and can
// never affect a call's return value. Implement this to integrate with a
// monitoring system.
type StatsCollector interface {
	// RecordCall is called after every completed router operation.
	RecordCall(op Operation, space string, status Status, latency time.Duration)

	// RecordFetch is called after a completed read with the number of
	// tuples fetched from partitions and the number examined by the
	// merge (including tuples discarded by post-filtering).
	RecordFetch(fetched, lookedUp int, space string)

	// RecordMapReduce is called when a read is planned as a fan-out over
	// all partitions rather than a single-partition call.
	RecordMapReduce(space string)

	// RecordSpaceNotFound is called when a request names an unknown space.
	RecordSpaceNotFound()
}

// NoopStatsCollector is a no-op implementation of StatsCollector.
type NoopStatsCollector struct{}

func (NoopStatsCollector) RecordCall(Operation, string, Status, time.Duration) {}
func (NoopStatsCollector) RecordFetch(int, int, string)                        {}
func (NoopStatsCollector) RecordMapReduce(string)                              {}
func (NoopStatsCollector) RecordSpaceNotFound()                                {}

// BasicStatsCollector provides simple in-memory stats collection.
// Useful for debugging and tests without external dependencies.
type BasicStatsCollector struct {
	mu sync.Mutex

	calls         map[Operation]int64
	errors        map[Operation]int64
	latency       map[Operation]time.Duration
	mapReduces    map[string]int64
	fetched       int64
	lookedUp      int64
	spaceNotFound int64
}

// NewBasicStatsCollector builds an empty collector.
func NewBasicStatsCollector() *BasicStatsCollector {
	return &BasicStatsCollector{
		calls:      make(map[Operation]int64),
		errors:     make(map[Operation]int64),
		latency:    make(map[Operation]time.Duration),
		mapReduces: make(map[string]int64),
	}
}

// RecordCall implements StatsCollector.
func (b *BasicStatsCollector) RecordCall(op Operation, space string, status Status, latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	b.latency[op] += latency
	if status != StatusOK {
		b.errors[op]++
	}
}

// RecordFetch implements StatsCollector.
func (b *BasicStatsCollector) RecordFetch(fetched, lookedUp int, space string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetched += int64(fetched)
	b.lookedUp += int64(lookedUp)
}

// RecordMapReduce implements StatsCollector.
func (b *BasicStatsCollector) RecordMapReduce(space string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapReduces[space]++
}

// RecordSpaceNotFound implements StatsCollector.
func (b *BasicStatsCollector) RecordSpaceNotFound() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spaceNotFound++
}

// Calls returns the number of completed calls for an operation.
func (b *BasicStatsCollector) Calls(op Operation) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Errors returns the number of failed calls for an operation.
func (b *BasicStatsCollector) Errors(op Operation) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errors[op]
}

// MapReduces returns the number of fanned-out reads planned for a space.
func (b *BasicStatsCollector) MapReduces(space string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapReduces[space]
}

// Fetched returns the total tuples fetched from partitions.
func (b *BasicStatsCollector) Fetched() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetched
}

// LookedUp returns the total tuples examined by merges.
func (b *BasicStatsCollector) LookedUp() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookedUp
}

// SpaceNotFound returns the unknown-space counter.
func (b *BasicStatsCollector) SpaceNotFound() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spaceNotFound
}
