package resolve

import (
	"context"
	"log/slog"

	"rostrum/internal/config"
	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/services"
	"rostrum/internal/stage"
)

// Step is the pipeline handler that resolves discovered videos to stream
// URLs. It dispatches to the resolver matching the video's source.
type Step struct {
	resolvers map[registry.Source]Resolver
	logger    *slog.Logger
}

var _ stage.Handler = (*Step)(nil)

// NewStep builds the resolve handler with the standard per-chamber resolvers.
func NewStep(cfg *config.Config, logger *slog.Logger) *Step {
	return NewStepWithResolvers(logger,
		NewHouseResolver(cfg.House, nil),
		NewSenateResolver(cfg.Senate, nil),
	)
}

// NewStepWithResolvers builds the resolve handler from explicit resolvers.
func NewStepWithResolvers(logger *slog.Logger, resolvers ...Resolver) *Step {
	if logger == nil {
		logger = logging.NewNop()
	}
	bySource := make(map[registry.Source]Resolver, len(resolvers))
	for _, r := range resolvers {
		bySource[r.Source()] = r
	}
	return &Step{resolvers: bySource, logger: logging.NewComponentLogger(logger, "resolve")}
}

// Prepare implements stage.Handler.
func (s *Step) Prepare(_ context.Context, video *registry.Video) error {
	if _, ok := s.resolvers[video.Source]; !ok {
		return services.Wrap(services.ErrConfiguration, "resolve", string(video.Source), "no resolver for source", nil)
	}
	if naturalKeyOf(video) == "" {
		return services.Wrap(services.ErrValidation, "resolve", string(video.Source), "video has no natural key", nil)
	}
	return nil
}

// Execute implements stage.Handler. On success the video's StreamURL is set;
// a retry simply overwrites whatever a previous attempt produced.
func (s *Step) Execute(ctx context.Context, video *registry.Video) error {
	resolver, ok := s.resolvers[video.Source]
	if !ok {
		return services.Wrap(services.ErrConfiguration, "resolve", string(video.Source), "no resolver for source", nil)
	}

	streamURL, err := resolver.Resolve(ctx, video)
	if err != nil {
		return err
	}

	video.StreamURL = streamURL
	s.logger.InfoContext(ctx, "resolved stream url",
		logging.String(logging.FieldVideoID, video.ID),
		logging.String(logging.FieldSource, string(video.Source)),
		logging.String("stream_url", streamURL))
	return nil
}

// HealthCheck implements stage.Handler. Resolution only needs outbound HTTP
// and configured resolvers, so readiness is a configuration check.
func (s *Step) HealthCheck(context.Context) stage.Health {
	if len(s.resolvers) == 0 {
		return stage.Unhealthy("resolve", "no resolvers configured")
	}
	return stage.Healthy("resolve")
}
