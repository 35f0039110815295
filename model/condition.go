package model

import "fmt"

// Op is a condition operator.
type Op string

const (
	OpEq Op = "="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// Condition is a single `field <op> value` predicate.
//
// One condition per read drives the index scan; any remaining conditions
// are applied as a post-filter on fetched tuples.
type Condition struct {
	Op    Op
	Field string
	Value any
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition { return Condition{Op: OpEq, Field: field, Value: value} }

// Gt builds a strictly-greater condition.
func Gt(field string, value any) Condition { return Condition{Op: OpGt, Field: field, Value: value} }

// Ge builds a greater-or-equal condition.
func Ge(field string, value any) Condition { return Condition{Op: OpGe, Field: field, Value: value} }

// Lt builds a strictly-less condition.
func Lt(field string, value any) Condition { return Condition{Op: OpLt, Field: field, Value: value} }

// Le builds a less-or-equal condition.
func Le(field string, value any) Condition { return Condition{Op: OpLe, Field: field, Value: value} }

// Validate checks the operator and field name.
func (c Condition) Validate() error {
	switch c.Op {
	case OpEq, OpGt, OpGe, OpLt, OpLe:
	default:
		return fmt.Errorf("unknown condition operator %q", c.Op)
	}
	if c.Field == "" {
		return fmt.Errorf("condition field must not be empty")
	}
	return nil
}

// Match reports whether the tuple satisfies the condition under the space
// format. An incomparable pair is a validation problem, not a miss.
func (c Condition) Match(t Tuple, sp *Space) (bool, error) {
	pos, ok := sp.FieldIndex(c.Field)
	if !ok {
		return false, fmt.Errorf("condition field %q is not in space %q format", c.Field, sp.Name)
	}
	var v any
	if pos < len(t) {
		v = t[pos]
	}
	cmp, err := Compare(v, c.Value)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case OpEq:
		return cmp == 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("unknown condition operator %q", c.Op)
}

// ValidateConditions validates a condition list as a unit.
func ValidateConditions(conds []Condition) error {
	for i, c := range conds {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

// MatchAll reports whether the tuple satisfies every condition.
func MatchAll(t Tuple, sp *Space, conds []Condition) (bool, error) {
	for _, c := range conds {
		ok, err := c.Match(t, sp)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
