package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"rostrum/internal/ipc"
	"rostrum/internal/registry"
)

// videoView is the CLI-facing shape of a registry video regardless of
// whether it arrived over IPC or straight from the database.
type videoView struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Title        string `json:"title"`
	Committee    string `json:"committee"`
	PageURL      string `json:"page_url"`
	RecordedAt   string `json:"recorded_at"`
	StreamURL    string `json:"stream_url"`
	MediaPath    string `json:"media_path"`
	TranscriptID string `json:"transcript_id"`
	Stage        string `json:"stage"`
	AttemptCount int    `json:"attempt_count"`
	LeaseOwner   string `json:"lease_owner"`
	FailedStage  string `json:"failed_stage"`
	LastError    string `json:"last_error"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func viewFromSummary(summary ipc.VideoSummary) videoView {
	return videoView(summary)
}

func viewsFromSummaries(summaries []ipc.VideoSummary) []videoView {
	views := make([]videoView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, viewFromSummary(summary))
	}
	return views
}

func viewFromVideo(video *registry.Video) videoView {
	view := videoView{
		ID:           video.ID,
		Source:       string(video.Source),
		Title:        video.Title,
		Committee:    video.Committee,
		PageURL:      video.PageURL,
		StreamURL:    video.StreamURL,
		MediaPath:    video.MediaPath,
		TranscriptID: video.TranscriptID,
		Stage:        string(video.Stage),
		AttemptCount: video.AttemptCount,
		LeaseOwner:   video.LeaseOwner,
		FailedStage:  string(video.FailedStage),
		LastError:    video.LastError,
	}
	if !video.RecordedAt.IsZero() {
		view.RecordedAt = video.RecordedAt.UTC().Format(time.RFC3339)
	}
	if !video.CreatedAt.IsZero() {
		view.CreatedAt = video.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !video.UpdatedAt.IsZero() {
		view.UpdatedAt = video.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func viewsFromVideos(videos []*registry.Video) []videoView {
	views := make([]videoView, 0, len(videos))
	for _, video := range videos {
		views = append(views, viewFromVideo(video))
	}
	return views
}

func buildStageStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStageLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(views []videoView) [][]string {
	if len(views) == 0 {
		return nil
	}
	sorted := make([]videoView, len(views))
	copy(sorted, views)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].CreatedAt)
		tj := parseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, view := range sorted {
		title := strings.TrimSpace(view.Title)
		if title == "" {
			title = "Untitled"
		}
		rows = append(rows, []string{
			view.ID,
			truncateTitle(title, 48),
			view.Source,
			formatStageLabel(view.Stage),
			fmt.Sprintf("%d", view.AttemptCount),
			formatDisplayTime(view.RecordedAt),
		})
	}
	return rows
}

func formatStageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return ""
	}
	parts := strings.Split(stage, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func truncateTitle(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
