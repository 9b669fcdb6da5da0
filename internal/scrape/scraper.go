package scrape

import (
	"context"
	"time"

	"rostrum/internal/registry"
)

// Candidate is one recording found on a chamber archive. NaturalKey is the
// archive's own stable identifier for the recording; combined with the source
// it yields the deterministic registry ID.
type Candidate struct {
	Source     registry.Source
	NaturalKey string
	Title      string
	Committee  string
	PageURL    string
	RecordedAt time.Time
}

// ID returns the registry identifier for the candidate.
func (c Candidate) ID() string {
	return registry.VideoID(c.Source, c.NaturalKey)
}

// Window bounds a discovery scan to recordings at or after Cutoff.
type Window struct {
	Cutoff time.Time
}

// WindowSince returns a Window covering the given number of days back from now.
func WindowSince(days int) Window {
	if days <= 0 {
		days = 1
	}
	return Window{Cutoff: time.Now().UTC().AddDate(0, 0, -days)}
}

// Contains reports whether a recording date falls inside the window.
func (w Window) Contains(recorded time.Time) bool {
	if recorded.IsZero() {
		return false
	}
	return !recorded.Before(w.Cutoff)
}

// Scraper lists candidate recordings for one chamber. Implementations must be
// safe to call repeatedly; discovery runs on a schedule and dedupes against
// the registry, not against earlier scrapes.
type Scraper interface {
	Source() registry.Source
	Discover(ctx context.Context, window Window) ([]Candidate, error)
}
