package stage

import (
	"context"

	"rostrum/internal/registry"
)

// Handler describes the contract the workflow manager needs from each
// pipeline step. Execute performs the external action for a claimed video and
// sets the produced reference field (stream URL, media path, transcript ID)
// on the record before returning; the manager owns the registry commit.
// Execute must be safe to invoke more than once for the same video: a retried
// action overwrites its earlier output rather than appending to it.
type Handler interface {
	Prepare(context.Context, *registry.Video) error
	Execute(context.Context, *registry.Video) error
	HealthCheck(context.Context) Health
}
