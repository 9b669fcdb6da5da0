package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/scrape"
)

// SourceResult records the outcome of scanning one source.
type SourceResult struct {
	Source registry.Source
	Found  int
	New    int
	Err    error
}

// Summary aggregates the outcome of one discovery run.
type Summary struct {
	StartedAt time.Time
	Duration  time.Duration
	PerSource []SourceResult
}

// TotalNew returns the number of newly registered videos across sources.
func (s Summary) TotalNew() int {
	total := 0
	for _, result := range s.PerSource {
		total += result.New
	}
	return total
}

// TotalFound returns the number of candidates seen across sources.
func (s Summary) TotalFound() int {
	total := 0
	for _, result := range s.PerSource {
		total += result.Found
	}
	return total
}

// Failed returns the sources whose scans errored.
func (s Summary) Failed() []SourceResult {
	var failed []SourceResult
	for _, result := range s.PerSource {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// String renders a one-line human summary, used in logs and notifications.
func (s Summary) String() string {
	parts := make([]string, 0, len(s.PerSource))
	for _, result := range s.PerSource {
		if result.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: failed", result.Source))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d new of %d", result.Source, result.New, result.Found))
	}
	return strings.Join(parts, ", ")
}

// Coordinator runs discovery scans across the configured scrapers.
type Coordinator struct {
	cfg      *config.Config
	store    *registry.Store
	scrapers []scrape.Scraper
	logger   *slog.Logger
}

// NewCoordinator builds a coordinator with the standard scrapers for every
// enabled source.
func NewCoordinator(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Coordinator {
	var scrapers []scrape.Scraper
	if cfg.SourceEnabled(string(registry.SourceHouse)) {
		scrapers = append(scrapers, scrape.NewHouseScraper(cfg.House, nil))
	}
	if cfg.SourceEnabled(string(registry.SourceSenate)) {
		scrapers = append(scrapers, scrape.NewSenateScraper(cfg.Senate, nil))
	}
	return NewCoordinatorWithScrapers(cfg, store, logger, scrapers...)
}

// NewCoordinatorWithScrapers builds a coordinator from explicit scrapers.
func NewCoordinatorWithScrapers(cfg *config.Config, store *registry.Store, logger *slog.Logger, scrapers ...scrape.Scraper) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		scrapers: scrapers,
		logger:   logging.NewComponentLogger(logger, "discovery"),
	}
}

// Run scans every scraper over the given window and registers new videos.
// A scraper failure is recorded in the summary but never stops the others.
func (c *Coordinator) Run(ctx context.Context, window scrape.Window) (Summary, error) {
	summary := Summary{StartedAt: time.Now().UTC()}
	if len(c.scrapers) == 0 {
		return summary, fmt.Errorf("discovery: no sources enabled")
	}

	for _, scraper := range c.scrapers {
		result := c.runSource(ctx, scraper, window)
		summary.PerSource = append(summary.PerSource, result)
		if ctx.Err() != nil {
			break
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	c.logger.InfoContext(ctx, "discovery run complete",
		logging.Int("found", summary.TotalFound()),
		logging.Int("new", summary.TotalNew()),
		logging.Int("failed_sources", len(summary.Failed())),
		logging.Duration("duration", summary.Duration))
	return summary, ctx.Err()
}

// RunLookback scans the configured steady-state window.
func (c *Coordinator) RunLookback(ctx context.Context) (Summary, error) {
	return c.Run(ctx, scrape.WindowSince(c.cfg.Discovery.LookbackDays))
}

// RunBackfill scans the wider backfill window used on first start.
func (c *Coordinator) RunBackfill(ctx context.Context) (Summary, error) {
	return c.Run(ctx, scrape.WindowSince(c.cfg.Discovery.BackfillDays))
}

// RunSince scans a caller-chosen window of trailing days.
func (c *Coordinator) RunSince(ctx context.Context, days int) (Summary, error) {
	return c.Run(ctx, scrape.WindowSince(days))
}

func (c *Coordinator) runSource(ctx context.Context, scraper scrape.Scraper, window scrape.Window) SourceResult {
	result := SourceResult{Source: scraper.Source()}

	candidates, err := scraper.Discover(ctx, window)
	if err != nil {
		result.Err = err
		c.logger.WarnContext(ctx, "source scan failed",
			logging.String(logging.FieldSource, string(result.Source)),
			logging.Error(err))
		return result
	}
	result.Found = len(candidates)

	for _, candidate := range candidates {
		video := &registry.Video{
			ID:         candidate.ID(),
			Source:     candidate.Source,
			Title:      candidate.Title,
			Committee:  candidate.Committee,
			PageURL:    candidate.PageURL,
			RecordedAt: candidate.RecordedAt,
		}
		inserted, err := c.store.UpsertDiscovered(ctx, video)
		if err != nil {
			result.Err = err
			c.logger.WarnContext(ctx, "register candidate failed",
				logging.String(logging.FieldSource, string(result.Source)),
				logging.String(logging.FieldVideoID, video.ID),
				logging.Error(err))
			return result
		}
		if inserted {
			result.New++
			c.logger.InfoContext(ctx, "registered new video",
				logging.String(logging.FieldSource, string(result.Source)),
				logging.String(logging.FieldVideoID, video.ID),
				logging.String("title", video.Title))
		}
	}
	return result
}
