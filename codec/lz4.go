package codec

import (
	"encoding/json"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 is JSON compressed with LZ4 block encoding.
//
// The uncompressed length is prepended as a varint-free fixed header so
// decode can size its buffer without guessing.
type LZ4 struct{}

// Marshal implements Codec.
func (LZ4) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, 4+lz4.CompressBlockBound(len(raw)))
	dst[0] = byte(len(raw))
	dst[1] = byte(len(raw) >> 8)
	dst[2] = byte(len(raw) >> 16)
	dst[3] = byte(len(raw) >> 24)
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, dst[4:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible: store raw with a zero marker length.
		out := make([]byte, 4+len(raw))
		copy(out[4:], raw)
		return out, nil
	}
	return dst[:4+n], nil
}

// Unmarshal implements Codec.
func (LZ4) Unmarshal(data []byte, v any) error {
	if len(data) < 4 {
		return fmt.Errorf("lz4 payload too short: %d bytes", len(data))
	}
	size := int(data[0]) | int(data[1])<<8 | int(data[2])<<16 | int(data[3])<<24
	if size == 0 {
		return json.Unmarshal(data[4:], v)
	}
	raw := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw[:n], v)
}

// Name implements Codec.
func (LZ4) Name() string { return "lz4-json" }
