// Package logs tails the daemon log file with bounded memory usage.
//
// Negative offsets request the last N lines; non-negative offsets resume
// reading from a previous position, which is how `rostrum logs --follow`
// polls for new output without re-reading the whole file. Callers supply
// context deadlines so follow-mode polling shuts down when the CLI exits.
package logs
