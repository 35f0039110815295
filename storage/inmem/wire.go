package inmem

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/shardq/shardq/model"
)

// wireValue is a type-tagged JSON envelope for one tuple field. Plain
// JSON numbers collapse int64/uint64/float64 into float64 on decode; the
// tag keeps the round trip lossless for every supported field type.
type wireValue struct {
	Kind  string  `json:"k"`
	Str   string  `json:"s,omitempty"`
	Float float64 `json:"f,omitempty"`
	Bool  bool    `json:"b,omitempty"`
}

const (
	kindNil    = "nil"
	kindBool   = "bool"
	kindInt    = "int"
	kindUint   = "uint"
	kindFloat  = "float"
	kindString = "str"
	kindBytes  = "bytes"
)

// through encodes a tuple with the node's codec and decodes it back,
// the same normalization a real wire hop applies. Unsupported value
// types fail here instead of corrupting stored rows.
func (n *Node) through(t model.Tuple) (model.Tuple, error) {
	wire := make([]wireValue, len(t))
	for i, v := range t {
		wv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		wire[i] = wv
	}

	data, err := n.codec.Marshal(wire)
	if err != nil {
		return nil, err
	}
	var back []wireValue
	if err := n.codec.Unmarshal(data, &back); err != nil {
		return nil, err
	}

	out := make(model.Tuple, len(back))
	for i, wv := range back {
		v, err := decodeValue(wv)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func encodeValue(v any) (wireValue, error) {
	switch x := v.(type) {
	case nil:
		return wireValue{Kind: kindNil}, nil
	case bool:
		return wireValue{Kind: kindBool, Bool: x}, nil
	case int:
		return wireValue{Kind: kindInt, Str: strconv.FormatInt(int64(x), 10)}, nil
	case int64:
		return wireValue{Kind: kindInt, Str: strconv.FormatInt(x, 10)}, nil
	case uint64:
		return wireValue{Kind: kindUint, Str: strconv.FormatUint(x, 10)}, nil
	case float64:
		return wireValue{Kind: kindFloat, Float: x}, nil
	case string:
		return wireValue{Kind: kindString, Str: x}, nil
	case []byte:
		return wireValue{Kind: kindBytes, Str: base64.StdEncoding.EncodeToString(x)}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func decodeValue(wv wireValue) (any, error) {
	switch wv.Kind {
	case kindNil:
		return nil, nil
	case kindBool:
		return wv.Bool, nil
	case kindInt:
		return strconv.ParseInt(wv.Str, 10, 64)
	case kindUint:
		return strconv.ParseUint(wv.Str, 10, 64)
	case kindFloat:
		return wv.Float, nil
	case kindString:
		return wv.Str, nil
	case kindBytes:
		return base64.StdEncoding.DecodeString(wv.Str)
	default:
		return nil, fmt.Errorf("unknown wire kind %q", wv.Kind)
	}
}
