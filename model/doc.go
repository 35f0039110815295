// Package model defines the core types shared across the router.
//
// # Data Types
//
//   - Tuple: ordered value array matching a space format
//   - Object: field-name keyed view of a tuple
//   - Space: named partitioned collection with format, indexes and a
//     schema version fingerprint
//   - Condition / UpdateOp: read predicates and write mutations
//
// # Sharding Types
//
//   - ShardingKeyDef: ordered field set deriving the bucket id
//   - ShardingFunc / ShardingFuncDef: bucket id computation
//   - ShardingInfo: per-space sharding metadata served by the cluster
//
// Comparison helpers (Compare, CompareKeys) define the total order used by
// merge execution: nil first, then numerics compared losslessly across
// int64/uint64/float64, then strings, booleans and bytes.
package model
