package resolve

import (
	"context"

	"rostrum/internal/registry"
)

// Resolver produces a fetchable stream URL for one chamber's recordings.
type Resolver interface {
	Source() registry.Source
	Resolve(ctx context.Context, video *registry.Video) (string, error)
}
