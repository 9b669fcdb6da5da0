package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rostrum/internal/config"
	"rostrum/internal/registry"
	"rostrum/internal/services"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// HouseScraper lists recordings on the house video archive. The archive
// exposes a partial-render endpoint returning an HTML fragment per year with
// one list item per committee; each item carries player links whose text is
// the recording date.
type HouseScraper struct {
	cfg    config.HouseSource
	client *http.Client
}

// NewHouseScraper builds a house scraper from source configuration.
func NewHouseScraper(cfg config.HouseSource, client *http.Client) *HouseScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HouseScraper{cfg: cfg, client: client}
}

// Source implements Scraper.
func (s *HouseScraper) Source() registry.Source {
	return registry.SourceHouse
}

// Discover fetches the archive fragment for every year the window touches
// and collects candidate recordings dated inside the window.
func (s *HouseScraper) Discover(ctx context.Context, window Window) ([]Candidate, error) {
	startYear := window.Cutoff.Year()
	endYear := time.Now().UTC().Year()
	if startYear > endYear {
		startYear = endYear
	}

	var candidates []Candidate
	for year := startYear; year <= endYear; year++ {
		yearCandidates, err := s.discoverYear(ctx, year, window)
		if err != nil {
			return candidates, err
		}
		candidates = append(candidates, yearCandidates...)
	}
	return candidates, nil
}

func (s *HouseScraper) discoverYear(ctx context.Context, year int, window Window) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s?handler=ArchiveVideoPartial&Year=%d&Type=All&Date=", s.cfg.ArchiveURL, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scrape", "house archive", "build request", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "house archive", fmt.Sprintf("fetch year %d", year), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, services.Wrap(services.ErrTransient, "scrape", "house archive",
			fmt.Sprintf("fetch year %d: status %d", year, resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "house archive", "parse fragment", err)
	}
	return s.parseFragment(doc, window), nil
}

// parseFragment walks committee list items and extracts player links. The
// fragment groups links under <li> blocks headed by a <strong> committee
// label of the form "Committee Name | N Videos".
func (s *HouseScraper) parseFragment(doc *goquery.Document, window Window) []Candidate {
	var candidates []Candidate
	doc.Find("li").Each(func(_ int, item *goquery.Selection) {
		committee := strings.TrimSpace(item.Find("strong").First().Text())
		if committee == "" {
			return
		}
		if idx := strings.Index(committee, "|"); idx >= 0 {
			committee = strings.TrimSpace(committee[:idx])
		}

		item.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if !strings.Contains(href, "/VideoArchivePlayer?video=") {
				return
			}
			candidate, ok := s.parseLink(href, strings.TrimSpace(link.Text()), committee, window)
			if ok {
				candidates = append(candidates, candidate)
			}
		})
	})
	return candidates
}

func (s *HouseScraper) parseLink(href, linkText, committee string, window Window) (Candidate, bool) {
	parsed, err := url.Parse(href)
	if err != nil {
		return Candidate{}, false
	}
	fileName := parsed.Query().Get("video")
	if fileName == "" {
		return Candidate{}, false
	}
	naturalKey := strings.TrimSuffix(fileName, ".mp4")

	recorded, ok := ParseHouseDate(linkText)
	if !ok || !window.Contains(recorded) {
		return Candidate{}, false
	}

	return Candidate{
		Source:     registry.SourceHouse,
		NaturalKey: naturalKey,
		Title:      committee + " - " + linkText,
		Committee:  committee,
		PageURL:    s.cfg.PlayerURL + "?video=" + fileName,
		RecordedAt: recorded,
	}, true
}
