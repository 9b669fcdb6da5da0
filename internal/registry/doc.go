// Package registry persists the per-video processing state machine in SQLite
// and exposes the transition helpers the workflow engine drives it with.
//
// The Store manages database connections, schema initialization, discovery
// upserts, stage claims and leases, guarded stage transitions, stuck-lease
// recovery, transcript storage, and diagnostic queries. Every mutation that
// moves a video between stages is guarded by an expected-stage compare so
// concurrent workers and the sweeper cannot clobber each other; callers see a
// lost race as ErrStaleState.
//
// Videos are never deleted. A permanently failed video stays on record both
// for audit history and so re-discovery of the same source item maps onto the
// existing row instead of creating a duplicate.
//
// Treat this package as the single source of truth for pipeline semantics;
// when you add new stages or record fields, update schema.sql and bump
// schemaVersion.
package registry
