package scatter

import (
	"context"
	"time"

	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// nodeStream pulls one partition's locally sorted sequence in rounds of
// at most batchSize tuples, refilling lazily as the merge drains it.
type nodeStream struct {
	node storage.Node
	req  storage.SelectRequest

	buf       []model.Tuple
	pos       int
	exhausted bool
	fetched   int

	index   model.Index
	primary model.Index
	timeout time.Duration
	version uint64
}

// head returns the buffered head without consuming it.
func (s *nodeStream) head() (model.Tuple, bool) {
	if s.pos < len(s.buf) {
		return s.buf[s.pos], true
	}
	return nil, false
}

func (s *nodeStream) advance() {
	s.pos++
}

// ensure refills the buffer when drained. It reports whether a head is
// available after the call.
func (s *nodeStream) ensure(ctx context.Context) (bool, error) {
	if s.pos < len(s.buf) {
		return true, nil
	}
	if s.exhausted {
		return false, nil
	}
	if err := s.refill(ctx); err != nil {
		return false, err
	}
	return s.pos < len(s.buf), nil
}

func (s *nodeStream) refill(ctx context.Context) error {
	if len(s.buf) > 0 {
		// Resume strictly after the last tuple of the previous round;
		// the primary key rides along to break duplicate index keys at
		// batch boundaries.
		last := s.buf[len(s.buf)-1]
		s.req.AfterKey = model.IndexKey(last, s.index)
		s.req.AfterPK = model.IndexKey(last, s.primary)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := storage.NewCallOptions(s.timeout, s.version)
	tuples, err := s.node.Select(cctx, s.req, opts)
	if err != nil {
		return storage.AsError(err, s.node.ID(), opts.RequestID)
	}

	s.buf = tuples
	s.pos = 0
	s.fetched += len(tuples)
	if len(tuples) < s.req.Limit {
		s.exhausted = true
	}
	return nil
}
