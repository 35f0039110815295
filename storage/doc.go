// Package storage declares the external collaborator surfaces the router
// consumes: the per-partition Node RPC interface, the Topology partition
// map, and the kind-tagged Error type shared by both sides.
//
// The router never implements storage itself. The inmem subpackage is a
// reference Node used by tests and examples; statictopology is a fixed
// partition map for clusters whose membership is configured up front.
package storage
