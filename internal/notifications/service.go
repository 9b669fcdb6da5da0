package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/registry"
)

const userAgent = "Rostrum-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDiscoveryCompleted(ctx context.Context, summary string, newVideos int) error
	NotifyVideoTranscribed(ctx context.Context, video *registry.Video) error
	NotifyVideoFailed(ctx context.Context, video *registry.Video, reason string) error
	NotifyLeaseReclaimed(ctx context.Context, video *registry.Video, requeued bool) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		toggles:  cfg.Notifications,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	toggles  config.Notifications
	client   *http.Client
}

func (n *ntfyService) NotifyDiscoveryCompleted(ctx context.Context, summary string, newVideos int) error {
	if !n.toggles.Discovery {
		return nil
	}
	if newVideos == 0 {
		// Nothing new is the steady state; notifying every scan is noise.
		return nil
	}
	data := payload{
		title:   "Rostrum - Discovery",
		message: fmt.Sprintf("Found %d new recordings (%s)", newVideos, strings.TrimSpace(summary)),
		tags:    []string{"rostrum", "discovery"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVideoTranscribed(ctx context.Context, video *registry.Video) error {
	if !n.toggles.Transcription || video == nil {
		return nil
	}
	data := payload{
		title:   "Rostrum - Transcribed",
		message: fmt.Sprintf("Transcript ready: %s", videoLabel(video)),
		tags:    []string{"rostrum", "transcribe", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVideoFailed(ctx context.Context, video *registry.Video, reason string) error {
	if !n.toggles.Errors || video == nil {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "no failure detail recorded"
	}
	data := payload{
		title:    "Rostrum - Video Failed",
		message:  fmt.Sprintf("%s failed in %s: %s", videoLabel(video), video.FailedStage, reason),
		tags:     []string{"rostrum", "failed", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLeaseReclaimed(ctx context.Context, video *registry.Video, requeued bool) error {
	if !n.toggles.Recovery || video == nil {
		return nil
	}
	outcome := "requeued"
	if !requeued {
		outcome = "failed (attempt budget exhausted)"
	}
	data := payload{
		title:   "Rostrum - Stuck Task Recovered",
		message: fmt.Sprintf("Reclaimed %s from %s; %s", videoLabel(video), video.Stage, outcome),
		tags:    []string{"rostrum", "recovery"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.toggles.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Rostrum - Error",
		message:  builder.String(),
		tags:     []string{"rostrum", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Rostrum - Test",
		message:  "Notification system test",
		tags:     []string{"rostrum", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func videoLabel(video *registry.Video) string {
	title := strings.TrimSpace(video.Title)
	if title == "" {
		return video.ID
	}
	return title
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

// NewNop returns a Service that drops every notification (used in tests).
func NewNop() Service { return noopService{} }

func (noopService) NotifyDiscoveryCompleted(context.Context, string, int) error       { return nil }
func (noopService) NotifyVideoTranscribed(context.Context, *registry.Video) error     { return nil }
func (noopService) NotifyVideoFailed(context.Context, *registry.Video, string) error  { return nil }
func (noopService) NotifyLeaseReclaimed(context.Context, *registry.Video, bool) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
