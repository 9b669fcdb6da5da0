package scrape_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/registry"
	"rostrum/internal/scrape"
)

const houseFragment = `
<ul>
  <li>
    <strong>Agriculture | 2 Videos</strong>
    <ul>
      <li><a href="/VideoArchivePlayer?video=HAGRI-022025.mp4">Thursday, February 20, 2025</a></li>
      <li><a href="/VideoArchivePlayer?video=HAGRI-011525.mp4">Wednesday, January 15, 2025</a></li>
    </ul>
  </li>
  <li>
    <strong>Appropriations | 1 Videos</strong>
    <ul>
      <li><a href="/VideoArchivePlayer?video=HAPPR-041625-2.mp4">Wednesday, April 16, 2025 - Part 2</a></li>
      <li><a href="/SomeOtherPage">Not a video link</a></li>
    </ul>
  </li>
</ul>`

func newHouseServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("handler") != "ArchiveVideoPartial" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("Year") == "2025" {
			_, _ = w.Write([]byte(houseFragment))
			return
		}
		_, _ = w.Write([]byte("<ul></ul>"))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func houseConfig(serverURL string) config.HouseSource {
	return config.HouseSource{
		ArchiveURL:    serverURL,
		VideoFilesURL: serverURL + "/ArchiveVideoFiles",
		PlayerURL:     serverURL + "/VideoArchivePlayer",
	}
}

func TestHouseScraperDiscover(t *testing.T) {
	server, _ := newHouseServer(t)
	scraper := scrape.NewHouseScraper(houseConfig(server.URL), server.Client())

	window := scrape.Window{Cutoff: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	candidates, err := scraper.Discover(context.Background(), window)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates inside window, got %d: %+v", len(candidates), candidates)
	}

	first := candidates[0]
	if first.NaturalKey != "HAGRI-022025" {
		t.Fatalf("natural key = %q", first.NaturalKey)
	}
	if first.ID() != "house:HAGRI-022025" {
		t.Fatalf("id = %q", first.ID())
	}
	if first.Committee != "Agriculture" {
		t.Fatalf("committee = %q", first.Committee)
	}
	if got, want := first.RecordedAt, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("recorded = %s, want %s", got, want)
	}
	if first.PageURL == "" || first.Source != registry.SourceHouse {
		t.Fatalf("unexpected candidate: %+v", first)
	}

	second := candidates[1]
	if second.NaturalKey != "HAPPR-041625-2" {
		t.Fatalf("expected part-suffixed video to keep its key, got %q", second.NaturalKey)
	}
	if got, want := second.RecordedAt, time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("part suffix date = %s, want %s", got, want)
	}
}

func TestHouseScraperWindowFiltersOldRecordings(t *testing.T) {
	server, _ := newHouseServer(t)
	scraper := scrape.NewHouseScraper(houseConfig(server.URL), server.Client())

	window := scrape.Window{Cutoff: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	candidates, err := scraper.Discover(context.Background(), window)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(candidates) != 1 || candidates[0].NaturalKey != "HAPPR-041625-2" {
		t.Fatalf("expected only the April recording, got %+v", candidates)
	}
}

func TestHouseScraperSpansYears(t *testing.T) {
	server, requests := newHouseServer(t)
	scraper := scrape.NewHouseScraper(houseConfig(server.URL), server.Client())

	cutoff := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	if _, err := scraper.Discover(context.Background(), scrape.Window{Cutoff: cutoff}); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	wantYears := time.Now().UTC().Year() - 2024 + 1
	if *requests != wantYears {
		t.Fatalf("expected %d year fetches, got %d", wantYears, *requests)
	}
}

func TestHouseScraperServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	scraper := scrape.NewHouseScraper(houseConfig(server.URL), server.Client())
	if _, err := scraper.Discover(context.Background(), scrape.WindowSince(2)); err == nil {
		t.Fatal("expected error for 5xx archive response")
	}
}
