// Package stream turns pure per-event reducers into stateful processors and
// fans each event out across an ordered list of them.
//
// A reducer maps (event, prior internal state) to (new internal state,
// projection). Its Processor reads the internal state for one user from a
// kvs.Store, runs the reducer, then writes the new internal state and the
// projection under two distinct keys:
//
//	Internal:{reducer}:{user}
//	External:{reducer}:{user}
//
// A Pipeline owns one Processor per registration, invokes them strictly in
// registration order and merges their projections last-write-wins. Each
// reducer declares the top-level projection keys it may emit; overlapping
// declarations are rejected when the Pipeline is built.
//
// Nothing here locks or batches store access. Two pipelines for the same
// user can lose updates to each other; the event archive is the recovery path.
package stream
