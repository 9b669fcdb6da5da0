package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/registry"
	"rostrum/internal/services"
)

// SenateResolver asks the senate media platform for an HLS manifest URL. The
// platform's upload/get endpoint mirrors what its web player calls; when it
// declines, the platform's CDN output layout is predictable enough to try
// directly.
type SenateResolver struct {
	cfg    config.SenateSource
	client *http.Client
}

// NewSenateResolver builds a senate resolver from source configuration.
func NewSenateResolver(cfg config.SenateSource, client *http.Client) *SenateResolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SenateResolver{cfg: cfg, client: client}
}

// Source implements Resolver.
func (r *SenateResolver) Source() registry.Source {
	return registry.SourceSenate
}

type senateResolveRequest struct {
	File string `json:"file"`
	Type string `json:"type"`
	User string `json:"user"`
}

type senateResolveResponse struct {
	Response struct {
		Payload struct {
			Data string `json:"data"`
		} `json:"payload"`
	} `json:"response"`
}

// Resolve implements Resolver.
func (r *SenateResolver) Resolve(ctx context.Context, video *registry.Video) (string, error) {
	fileID := naturalKeyOf(video)
	if fileID == "" {
		return "", services.Wrap(services.ErrValidation, "resolve", "senate", "video has no natural key", nil)
	}

	if streamURL, err := r.resolveViaAPI(ctx, fileID); err == nil && streamURL != "" {
		return streamURL, nil
	}

	fallback := fmt.Sprintf("%s/%s/Default/HLS/out.m3u8", r.cfg.StreamFallbackURL, fileID)
	if err := r.probeManifest(ctx, fallback); err != nil {
		return "", err
	}
	return fallback, nil
}

func (r *SenateResolver) resolveViaAPI(ctx context.Context, fileID string) (string, error) {
	body, err := json.Marshal(senateResolveRequest{File: fileID, Type: "HLS", User: r.cfg.SiteID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.ResolveURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", resolveUserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://cloud.castus.tv")
	req.Header.Set("Referer", "https://cloud.castus.tv/vod/misenate/")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("resolve api status %d", resp.StatusCode)
	}

	var decoded senateResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}

	streamURL := strings.TrimSpace(decoded.Response.Payload.Data)
	if streamURL == "" {
		return "", fmt.Errorf("resolve api returned no stream url")
	}
	// The platform appends signing query params that expire; the manifest
	// itself is served unsigned.
	if idx := strings.Index(streamURL, "?"); idx >= 0 {
		streamURL = streamURL[:idx]
	}
	return streamURL, nil
}

func (r *SenateResolver) probeManifest(ctx context.Context, manifestURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, manifestURL, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "resolve", "senate", "build manifest probe", err)
	}
	req.Header.Set("User-Agent", resolveUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "resolve", "senate", "probe fallback manifest", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrNotFound, "resolve", "senate",
			fmt.Sprintf("%s: status %d", manifestURL, resp.StatusCode), nil)
	default:
		return services.Wrap(services.ErrTransient, "resolve", "senate",
			fmt.Sprintf("%s: status %d", manifestURL, resp.StatusCode), nil)
	}
}
