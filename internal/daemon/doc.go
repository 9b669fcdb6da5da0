// Package daemon owns the long-running rostrumd process: it enforces
// single-instance execution with a file lock, supervises the workflow
// manager, and provides the operation surface the IPC server exposes to the
// CLI (status, registry queries, retries, transcript search).
package daemon
