// Package services provides shared error classification and context plumbing
// for the pipeline step handlers.
//
// Step implementations tag failures with one of the sentinel markers so the
// workflow manager can decide between requeueing within the attempt budget
// and failing the video permanently. Context helpers carry the video ID, step
// name, source, and correlation ID from the manager down into handlers and
// their loggers.
package services
