package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/registry"
	"rostrum/internal/services"
)

const resolveUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// HouseResolver resolves house recordings to their direct MP4 URL. The
// archive stores files under a flat directory keyed by the video file name,
// so resolution is a path construction plus a HEAD probe confirming the file
// actually exists and is a media object rather than an HTML error page.
type HouseResolver struct {
	cfg    config.HouseSource
	client *http.Client
}

// NewHouseResolver builds a house resolver from source configuration.
func NewHouseResolver(cfg config.HouseSource, client *http.Client) *HouseResolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HouseResolver{cfg: cfg, client: client}
}

// Source implements Resolver.
func (r *HouseResolver) Source() registry.Source {
	return registry.SourceHouse
}

// Resolve implements Resolver.
func (r *HouseResolver) Resolve(ctx context.Context, video *registry.Video) (string, error) {
	naturalKey := naturalKeyOf(video)
	if naturalKey == "" {
		return "", services.Wrap(services.ErrValidation, "resolve", "house", "video has no natural key", nil)
	}

	directURL := r.cfg.VideoFilesURL + "/" + naturalKey + ".mp4"

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, directURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "resolve", "house", "build probe request", err)
	}
	req.Header.Set("User-Agent", resolveUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "resolve", "house", "probe direct url", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		if !looksLikeMedia(resp.Header) {
			return "", services.Wrap(services.ErrValidation, "resolve", "house",
				fmt.Sprintf("%s served non-media content", directURL), nil)
		}
		return directURL, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", services.Wrap(services.ErrNotFound, "resolve", "house",
			fmt.Sprintf("%s: status %d", directURL, resp.StatusCode), nil)
	default:
		return "", services.Wrap(services.ErrTransient, "resolve", "house",
			fmt.Sprintf("%s: status %d", directURL, resp.StatusCode), nil)
	}
}

// looksLikeMedia accepts video content types, the generic octet-stream type
// some archive servers use, or any response advertising a positive length.
func looksLikeMedia(header http.Header) bool {
	contentType := strings.ToLower(header.Get("Content-Type"))
	if strings.Contains(contentType, "video") || strings.Contains(contentType, "mp4") ||
		strings.Contains(contentType, "octet-stream") {
		return true
	}
	length, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	return err == nil && length > 0
}

// naturalKeyOf recovers the archive file key from the registry ID, which is
// always "source:naturalKey".
func naturalKeyOf(video *registry.Video) string {
	if video == nil {
		return ""
	}
	prefix := string(video.Source) + ":"
	if !strings.HasPrefix(video.ID, prefix) {
		return ""
	}
	return strings.TrimPrefix(video.ID, prefix)
}
