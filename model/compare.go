package model

import (
	"bytes"
	"fmt"
	"math"
)

// Compare orders two scalar tuple values.
//
// nil sorts before everything. Numeric values compare across int64, uint64
// and float64 without loss: the int64/uint64 boundary cases are handled
// explicitly instead of converting through float64.
func Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, nil
		case a == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}

	if an, aok := asNumber(a); aok {
		bn, bok := asNumber(b)
		if !bok {
			return 0, incomparable(a, b)
		}
		return an.compare(bn), nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, incomparable(a, b)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, incomparable(a, b)
		}
		switch {
		case !av && bv:
			return -1, nil
		case av && !bv:
			return 1, nil
		}
		return 0, nil
	case []byte:
		bv, ok := b.([]byte)
		if !ok {
			return 0, incomparable(a, b)
		}
		return bytes.Compare(av, bv), nil
	}

	return 0, incomparable(a, b)
}

// CompareKeys orders two multi-field keys lexicographically.
//
// A shorter key that is a prefix of a longer one sorts first, which gives
// partial-key bounds their natural meaning.
func CompareKeys(a, b Tuple) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c, err := Compare(a[i], b[i])
		if err != nil {
			return 0, fmt.Errorf("key part %d: %w", i, err)
		}
		if c != 0 {
			return c, nil
		}
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	}
	return 0, nil
}

func incomparable(a, b any) error {
	return fmt.Errorf("cannot compare %T with %T", a, b)
}

// number is a lossless numeric wrapper over the three wire numeric types.
type number struct {
	f     float64
	i     int64
	u     uint64
	isInt bool // i valid
	isUns bool // u valid
}

func asNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int64:
		return number{i: n, isInt: true}, true
	case int:
		return number{i: int64(n), isInt: true}, true
	case int32:
		return number{i: int64(n), isInt: true}, true
	case uint64:
		return number{u: n, isUns: true}, true
	case uint32:
		return number{u: uint64(n), isUns: true}, true
	case uint:
		return number{u: uint64(n), isUns: true}, true
	case float64:
		return number{f: n}, true
	case float32:
		return number{f: float64(n)}, true
	}
	return number{}, false
}

func (n number) compare(m number) int {
	switch {
	case n.isInt && m.isInt:
		return cmpInt64(n.i, m.i)
	case n.isUns && m.isUns:
		return cmpUint64(n.u, m.u)
	case n.isInt && m.isUns:
		if n.i < 0 {
			return -1
		}
		return cmpUint64(uint64(n.i), m.u)
	case n.isUns && m.isInt:
		if m.i < 0 {
			return 1
		}
		return cmpUint64(n.u, uint64(m.i))
	}

	// At least one float: compare in float64. Integers above 2^53 may lose
	// precision here, matching the storage engine's own float comparison.
	return cmpFloat64(n.float(), m.float())
}

func (n number) float() float64 {
	switch {
	case n.isInt:
		return float64(n.i)
	case n.isUns:
		return float64(n.u)
	}
	return n.f
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case math.IsNaN(a) && !math.IsNaN(b):
		return -1
	case !math.IsNaN(a) && math.IsNaN(b):
		return 1
	}
	return 0
}
