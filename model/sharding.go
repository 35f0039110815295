package model

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// DefaultShardingFunc is the built-in hash sharding function: CRC32C over
// a canonical encoding of the key values, reduced modulo the bucket count.
//
// The encoding is type-tagged so that e.g. int64(1) and "1" land in
// different buckets deterministically rather than colliding by accident.
func DefaultShardingFunc(key Tuple, bucketCount uint64) (uint64, error) {
	if bucketCount == 0 {
		return 0, fmt.Errorf("bucket count must be positive")
	}
	h := crc32.New(crcTable)
	var buf [9]byte
	for _, v := range key {
		switch n := v.(type) {
		case nil:
			buf[0] = 0x00
			h.Write(buf[:1])
		case bool:
			buf[0] = 0x01
			buf[1] = 0
			if n {
				buf[1] = 1
			}
			h.Write(buf[:2])
		case int64:
			buf[0] = 0x02
			binary.BigEndian.PutUint64(buf[1:], uint64(n))
			h.Write(buf[:9])
		case int:
			buf[0] = 0x02
			binary.BigEndian.PutUint64(buf[1:], uint64(int64(n)))
			h.Write(buf[:9])
		case uint64:
			buf[0] = 0x03
			binary.BigEndian.PutUint64(buf[1:], n)
			h.Write(buf[:9])
		case float64:
			buf[0] = 0x04
			binary.BigEndian.PutUint64(buf[1:], math.Float64bits(n))
			h.Write(buf[:9])
		case string:
			buf[0] = 0x05
			h.Write(buf[:1])
			h.Write([]byte(n))
		case []byte:
			buf[0] = 0x06
			h.Write(buf[:1])
			h.Write(n)
		default:
			return 0, fmt.Errorf("unshardable key value of type %T", v)
		}
	}
	return uint64(h.Sum32()) % bucketCount, nil
}
