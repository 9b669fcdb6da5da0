package testsupport

import (
	"context"
	"testing"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/registry"
)

// MustOpenStore opens a registry.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVideo seeds a freshly discovered recording for tests using the provided
// store and returns it.
func NewVideo(t testing.TB, store *registry.Store, source registry.Source, naturalKey, title string) *registry.Video {
	t.Helper()

	video := &registry.Video{
		ID:         registry.VideoID(source, naturalKey),
		Source:     source,
		Title:      title,
		PageURL:    "https://example.test/videos/" + naturalKey,
		RecordedAt: time.Date(2025, time.February, 20, 9, 0, 0, 0, time.UTC),
	}
	if _, err := store.UpsertDiscovered(context.Background(), video); err != nil {
		t.Fatalf("store.UpsertDiscovered: %v", err)
	}
	return video
}
