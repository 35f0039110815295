package model

import (
	"fmt"
)

// BucketIDField is the reserved field name holding a tuple's partition id.
//
// Every sharded space format must contain a field with this name; the
// router injects the computed bucket id into that slot on every write.
const BucketIDField = "bucket_id"

// FieldType enumerates the value types a space format can declare.
type FieldType string

const (
	FieldTypeUnsigned FieldType = "unsigned"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeNumber   FieldType = "number"
	FieldTypeString   FieldType = "string"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeBytes    FieldType = "bytes"
	FieldTypeAny      FieldType = "any"
)

// Field is one named, typed slot in a space format.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// Index describes an index over a space.
//
// Parts are zero-based positions into the tuple, in comparison order.
type Index struct {
	Name   string
	Unique bool
	Parts  []int
}

// Space is a named, horizontally partitioned set of uniquely keyed tuples.
//
// Format is ordered: tuple slot i corresponds to Format[i]. SchemaVersion
// is a fingerprint bumped on any format/index change; storage nodes reject
// calls carrying a stale version so routers can refresh their caches.
type Space struct {
	Name          string
	Format        []Field
	PrimaryIndex  Index
	Indexes       []Index
	SchemaVersion uint64
}

// FieldIndex returns the tuple position of the named field.
func (s *Space) FieldIndex(name string) (int, bool) {
	for i, f := range s.Format {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// BucketField returns the position of the reserved bucket id slot.
func (s *Space) BucketField() (int, bool) {
	return s.FieldIndex(BucketIDField)
}

// IndexByName resolves an index by name; the empty name means the primary
// index.
func (s *Space) IndexByName(name string) (Index, bool) {
	if name == "" || name == s.PrimaryIndex.Name {
		return s.PrimaryIndex, true
	}
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// PrimaryKeyFields returns the field names of the primary index parts.
func (s *Space) PrimaryKeyFields() []string {
	names := make([]string, len(s.PrimaryIndex.Parts))
	for i, p := range s.PrimaryIndex.Parts {
		names[i] = s.Format[p].Name
	}
	return names
}

// Tuple is an ordered value array matching a space format.
//
// Supported value types are nil, bool, int64, uint64, float64, string and
// []byte. Writes may carry a nil bucket id slot; the router fills it.
type Tuple []any

// Clone returns a shallow copy of the tuple. The router clones before
// injecting a bucket id so caller-owned tuples are never mutated.
func (t Tuple) Clone() Tuple {
	if t == nil {
		return nil
	}
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// Object is a field-name keyed representation of a tuple.
type Object map[string]any

// ToTuple flattens an object into a tuple ordered by the space format.
// Fields absent from the object become nil slots.
func (o Object) ToTuple(sp *Space) (Tuple, error) {
	t := make(Tuple, len(sp.Format))
	seen := 0
	for i, f := range sp.Format {
		if v, ok := o[f.Name]; ok {
			t[i] = v
			seen++
		}
	}
	if seen != len(o) {
		for name := range o {
			if _, ok := sp.FieldIndex(name); !ok {
				return nil, fmt.Errorf("field %q is not in space %q format", name, sp.Name)
			}
		}
	}
	return t, nil
}

// ToObject maps a tuple onto the space format by position.
func (t Tuple) ToObject(sp *Space) (Object, error) {
	if len(t) > len(sp.Format) {
		return nil, fmt.Errorf("tuple has %d fields, space %q format has %d", len(t), sp.Name, len(sp.Format))
	}
	obj := make(Object, len(t))
	for i, v := range t {
		obj[sp.Format[i].Name] = v
	}
	return obj, nil
}

// ShardingKeyDef is the ordered field set used to derive a bucket id.
// When absent for a space, the primary key fields are used.
type ShardingKeyDef struct {
	Fields []string
}

// ShardingFunc computes a bucket id in [0, bucketCount) from an extracted
// sharding key.
type ShardingFunc func(key Tuple, bucketCount uint64) (uint64, error)

// ShardingFuncDef is an optional custom sharding function for a space.
type ShardingFuncDef struct {
	Name string
	Fn   ShardingFunc
}

// ShardingInfo is the per-space sharding metadata served by the cluster.
type ShardingInfo struct {
	Key  *ShardingKeyDef
	Func *ShardingFuncDef
}

// ExtractKey pulls the named fields out of a tuple in order.
func ExtractKey(t Tuple, sp *Space, fields []string) (Tuple, error) {
	key := make(Tuple, 0, len(fields))
	for _, name := range fields {
		pos, ok := sp.FieldIndex(name)
		if !ok {
			return nil, fmt.Errorf("sharding field %q is not in space %q format", name, sp.Name)
		}
		if pos >= len(t) {
			return nil, fmt.Errorf("tuple is too short for field %q at position %d", name, pos)
		}
		key = append(key, t[pos])
	}
	return key, nil
}

// IndexKey extracts the index part values from a tuple.
func IndexKey(t Tuple, idx Index) Tuple {
	key := make(Tuple, 0, len(idx.Parts))
	for _, p := range idx.Parts {
		if p < len(t) {
			key = append(key, t[p])
		} else {
			key = append(key, nil)
		}
	}
	return key
}

// CutTuple strips a tuple down to the requested fields, in request order.
//
// Merge and pagination need index and primary key columns, so cutting is
// always the last step of a read, never applied before merging.
func CutTuple(t Tuple, sp *Space, fields []string) (Tuple, error) {
	if len(fields) == 0 {
		return t, nil
	}
	out := make(Tuple, 0, len(fields))
	for _, name := range fields {
		pos, ok := sp.FieldIndex(name)
		if !ok {
			return nil, fmt.Errorf("projection field %q is not in space %q format", name, sp.Name)
		}
		if pos < len(t) {
			out = append(out, t[pos])
		} else {
			out = append(out, nil)
		}
	}
	return out, nil
}

// CutTuples applies CutTuple to every tuple.
func CutTuples(ts []Tuple, sp *Space, fields []string) ([]Tuple, error) {
	if len(fields) == 0 {
		return ts, nil
	}
	out := make([]Tuple, len(ts))
	for i, t := range ts {
		cut, err := CutTuple(t, sp, fields)
		if err != nil {
			return nil, err
		}
		out[i] = cut
	}
	return out, nil
}
