package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/registry"
	"rostrum/internal/services"
)

// SenateScraper lists recordings through the senate's hosted media platform
// API. The recent-files endpoint only answers requests that look like they
// came from the platform's own web player, hence the Origin/Referer headers.
type SenateScraper struct {
	cfg    config.SenateSource
	client *http.Client
}

// NewSenateScraper builds a senate scraper from source configuration.
func NewSenateScraper(cfg config.SenateSource, client *http.Client) *SenateScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SenateScraper{cfg: cfg, client: client}
}

// Source implements Scraper.
func (s *SenateScraper) Source() registry.Source {
	return registry.SourceSenate
}

type senateFile struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
	Agenda struct {
		Name string `json:"name"`
	} `json:"agenda"`
}

type senateRecentFiles struct {
	AllFiles []senateFile `json:"allFiles"`
	Count    int          `json:"count"`
}

// Discover fetches the recent-files listing and keeps entries recorded inside
// the window.
func (s *SenateScraper) Discover(ctx context.Context, window Window) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.RecentFilesURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scrape", "senate api", "build request", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://cloud.castus.tv")
	req.Header.Set("Referer", "https://cloud.castus.tv/vod/misenate/")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "senate api", "fetch recent files", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "scrape", "senate api",
			fmt.Sprintf("fetch recent files: status %d", resp.StatusCode), nil)
	}

	var listing senateRecentFiles
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "senate api", "decode listing", err)
	}

	candidates := make([]Candidate, 0, len(listing.AllFiles))
	for _, file := range listing.AllFiles {
		candidate, ok := s.parseFile(file, window)
		if ok {
			candidates = append(candidates, candidate)
		}
	}
	return candidates, nil
}

func (s *SenateScraper) parseFile(file senateFile, window Window) (Candidate, bool) {
	id := strings.TrimSpace(file.ID)
	if id == "" {
		return Candidate{}, false
	}

	recorded, ok := ParseSenateDate(file.Date)
	if !ok || !window.Contains(recorded) {
		return Candidate{}, false
	}

	title := strings.TrimSpace(file.Metadata.Title)
	if title == "" {
		title = strings.TrimSpace(file.Name)
	}
	if title == "" {
		title = id
	}

	committee := strings.TrimSpace(file.Agenda.Name)
	if committee == "" {
		committee = title
	}

	return Candidate{
		Source:     registry.SourceSenate,
		NaturalKey: id,
		Title:      title,
		Committee:  committee,
		PageURL:    s.cfg.PlayerURL + "/" + id,
		RecordedAt: recorded,
	}, true
}
