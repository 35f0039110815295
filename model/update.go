package model

import "fmt"

// UpdateOpKind enumerates the supported tuple update operations.
type UpdateOpKind string

const (
	UpdateAssign UpdateOpKind = "="
	UpdateAdd    UpdateOpKind = "+"
	UpdateSub    UpdateOpKind = "-"
	UpdateDelete UpdateOpKind = "#"
)

// UpdateOp is one field mutation inside an update or upsert.
type UpdateOp struct {
	Op    UpdateOpKind
	Field string
	Value any
}

// Assign builds a field assignment.
func Assign(field string, value any) UpdateOp {
	return UpdateOp{Op: UpdateAssign, Field: field, Value: value}
}

// Add builds a numeric increment.
func Add(field string, value any) UpdateOp {
	return UpdateOp{Op: UpdateAdd, Field: field, Value: value}
}

// Sub builds a numeric decrement.
func Sub(field string, value any) UpdateOp {
	return UpdateOp{Op: UpdateSub, Field: field, Value: value}
}

// Del builds a field clear (sets the slot to nil).
func Del(field string) UpdateOp {
	return UpdateOp{Op: UpdateDelete, Field: field}
}

// Validate checks the operation kind and field name.
func (u UpdateOp) Validate() error {
	switch u.Op {
	case UpdateAssign, UpdateAdd, UpdateSub, UpdateDelete:
	default:
		return fmt.Errorf("unknown update operator %q", u.Op)
	}
	if u.Field == "" {
		return fmt.Errorf("update field must not be empty")
	}
	return nil
}

// ValidateUpdateOps validates an operation list as a unit.
func ValidateUpdateOps(ops []UpdateOp) error {
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

// ApplyUpdateOps applies the operations to a copy of the tuple.
//
// Storage nodes run this on their local copy; the router only uses it to
// validate operation lists against the cached format before any RPC.
func ApplyUpdateOps(t Tuple, sp *Space, ops []UpdateOp) (Tuple, error) {
	out := t.Clone()
	for _, op := range ops {
		pos, ok := sp.FieldIndex(op.Field)
		if !ok {
			return nil, fmt.Errorf("update field %q is not in space %q format", op.Field, sp.Name)
		}
		for pos >= len(out) {
			out = append(out, nil)
		}
		switch op.Op {
		case UpdateAssign:
			out[pos] = op.Value
		case UpdateDelete:
			out[pos] = nil
		case UpdateAdd, UpdateSub:
			cur, curOK := asNumber(out[pos])
			delta, deltaOK := asNumber(op.Value)
			if !curOK || !deltaOK {
				return nil, fmt.Errorf("arithmetic update on non-numeric field %q", op.Field)
			}
			out[pos] = applyArith(cur, delta, op.Op == UpdateSub)
		}
	}
	return out, nil
}

func applyArith(cur, delta number, sub bool) any {
	if cur.isInt || cur.isUns {
		d := delta.asInt64()
		if sub {
			d = -d
		}
		if cur.isUns {
			if d < 0 && uint64(-d) > cur.u {
				// Unsigned underflow clamps to the signed domain.
				return int64(cur.u) + d
			}
			if d < 0 {
				return cur.u - uint64(-d)
			}
			return cur.u + uint64(d)
		}
		return cur.i + d
	}
	d := delta.float()
	if sub {
		d = -d
	}
	return cur.f + d
}

func (n number) asInt64() int64 {
	switch {
	case n.isInt:
		return n.i
	case n.isUns:
		return int64(n.u)
	}
	return int64(n.f)
}
