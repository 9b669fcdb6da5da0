// Package preflight validates external dependencies and directory access
// before the pipeline starts work.
package preflight
