package scatter

import "github.com/shardq/shardq/model"

// mergeItem is one partition's current head inside the k-way merge.
type mergeItem struct {
	tuple model.Tuple
	// sortKey is the active index key with the primary key appended, so
	// ordering and the first tie-break come from a single comparison.
	sortKey model.Tuple
	stream  int
}

// mergeHeap is a binary heap over partition heads.
//
// Same shape as a bounded search frontier: value-based items, sift
// helpers, direction baked in. Remaining ties after the sort key fall
// back to the partition id so merge output is deterministic regardless
// of arrival order.
type mergeHeap struct {
	items      []mergeItem
	descending bool
	nodeIDs    []string
	err        error
}

func newMergeHeap(descending bool, nodeIDs []string) *mergeHeap {
	return &mergeHeap{descending: descending, nodeIDs: nodeIDs}
}

func (h *mergeHeap) Len() int { return len(h.items) }

// Push inserts an item while maintaining the heap invariant.
func (h *mergeHeap) Push(item mergeItem) {
	h.items = append(h.items, item)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the smallest (largest in descending mode) head.
func (h *mergeHeap) Pop() (mergeItem, bool) {
	if len(h.items) == 0 {
		return mergeItem{}, false
	}
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if last > 0 {
		h.siftDown(0)
	}
	return top, true
}

// Err reports a comparison failure encountered during heap maintenance.
// Mixed incomparable types cannot be ordered, so the merge must abort.
func (h *mergeHeap) Err() error { return h.err }

func (h *mergeHeap) less(a, b mergeItem) bool {
	c, err := model.CompareKeys(a.sortKey, b.sortKey)
	if err != nil && h.err == nil {
		h.err = err
	}
	if c == 0 {
		return h.nodeIDs[a.stream] < h.nodeIDs[b.stream]
	}
	if h.descending {
		return c > 0
	}
	return c < 0
}

func (h *mergeHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(h.items[i], h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *mergeHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		smallest := left
		if right := left + 1; right < n && h.less(h.items[right], h.items[left]) {
			smallest = right
		}
		if !h.less(h.items[smallest], h.items[i]) {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
