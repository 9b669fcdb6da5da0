// Package workflow drives videos through the processing pipeline. The
// manager runs a small worker pool per step; each worker claims one ready
// video at a time, executes the step handler under a per-step deadline, and
// commits the advance. Every transition goes through the registry's guarded
// updates, so a worker that loses a race simply discards its work. A sweeper
// returns orphaned leases to the queue, and a scheduler triggers discovery
// scans on the configured interval.
package workflow
