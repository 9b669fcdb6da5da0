package registry_test

import (
	"context"
	"strings"
	"testing"

	"rostrum/internal/registry"
	"rostrum/internal/testsupport"
)

func TestAddTranscriptAssignsIdentifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, registry.SourceHouse, "HAGRI-022025", "Agriculture")
	transcript := &registry.Transcript{
		VideoID:  video.ID,
		Provider: "whisperx",
		Content:  "The committee will come to order.",
		VTTPath:  "/transcripts/HAGRI-022025.vtt",
	}
	if err := store.AddTranscript(ctx, transcript); err != nil {
		t.Fatalf("AddTranscript failed: %v", err)
	}
	if transcript.ID == "" {
		t.Fatal("expected transcript ID to be assigned")
	}
	if transcript.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp to be assigned")
	}

	fetched, err := store.GetTranscript(ctx, transcript.ID)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected transcript on record")
	}
	if fetched.Provider != "whisperx" || fetched.VTTPath != transcript.VTTPath {
		t.Fatalf("unexpected transcript fields: %+v", fetched)
	}
	if fetched.Content != transcript.Content {
		t.Fatalf("content round trip mismatch: %q", fetched.Content)
	}

	missing, err := store.GetTranscript(ctx, "nope")
	if err != nil {
		t.Fatalf("GetTranscript(missing) failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown transcript")
	}
}

func TestSearchTranscriptsMatchesContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	older := testsupport.NewVideo(t, store, registry.SourceHouse, "HAGRI-020625", "Agriculture")
	newer := &registry.Video{
		ID:         registry.VideoID(registry.SourceSenate, "session-30"),
		Source:     registry.SourceSenate,
		Title:      "Appropriations Hearing",
		Committee:  "Appropriations",
		RecordedAt: older.RecordedAt.AddDate(0, 0, 7),
	}
	if _, err := store.UpsertDiscovered(ctx, newer); err != nil {
		t.Fatalf("UpsertDiscovered failed: %v", err)
	}

	if err := store.AddTranscript(ctx, &registry.Transcript{
		VideoID:  older.ID,
		Provider: "whisperx",
		Content:  "Discussion of the school aid budget and rural broadband grants.",
	}); err != nil {
		t.Fatalf("AddTranscript failed: %v", err)
	}
	if err := store.AddTranscript(ctx, &registry.Transcript{
		VideoID:  newer.ID,
		Provider: "whisperx",
		Content:  "The budget amendment passed on a voice vote.",
	}); err != nil {
		t.Fatalf("AddTranscript failed: %v", err)
	}

	hits, err := store.SearchTranscripts(ctx, "budget", 0)
	if err != nil {
		t.Fatalf("SearchTranscripts failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].VideoID != newer.ID {
		t.Fatalf("expected newest recording first, got %s", hits[0].VideoID)
	}
	if hits[0].Title != "Appropriations Hearing" {
		t.Fatalf("expected joined video metadata, got %q", hits[0].Title)
	}
	for _, hit := range hits {
		if !strings.Contains(strings.ToLower(hit.Snippet), "budget") {
			t.Fatalf("expected snippet to contain the match, got %q", hit.Snippet)
		}
	}

	broadband, err := store.SearchTranscripts(ctx, "BROADBAND", 0)
	if err != nil {
		t.Fatalf("SearchTranscripts failed: %v", err)
	}
	if len(broadband) != 1 || broadband[0].VideoID != older.ID {
		t.Fatalf("expected case-insensitive match on one transcript, got %+v", broadband)
	}

	none, err := store.SearchTranscripts(ctx, "filibuster", 0)
	if err != nil {
		t.Fatalf("SearchTranscripts failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no hits, got %d", len(none))
	}

	if _, err := store.SearchTranscripts(ctx, "   ", 0); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestSearchTranscriptsTrimsSnippet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, registry.SourceHouse, "HAGRI-022025", "Agriculture")
	long := strings.Repeat("Preliminary remarks continued at length. ", 20) +
		"The gas tax revenue projection was revised downward. " +
		strings.Repeat("Additional testimony followed from local officials. ", 20)
	if err := store.AddTranscript(ctx, &registry.Transcript{
		VideoID:  video.ID,
		Provider: "whisperx",
		Content:  long,
	}); err != nil {
		t.Fatalf("AddTranscript failed: %v", err)
	}

	hits, err := store.SearchTranscripts(ctx, "gas tax", 5)
	if err != nil {
		t.Fatalf("SearchTranscripts failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	snippet := hits[0].Snippet
	if !strings.Contains(snippet, "gas tax") {
		t.Fatalf("expected snippet centered on match, got %q", snippet)
	}
	if !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Fatalf("expected snippet trimmed on both sides, got %q", snippet)
	}
	if len(snippet) > 200 {
		t.Fatalf("expected snippet bounded, got %d bytes", len(snippet))
	}
}

func TestTranscriptsForVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, registry.SourceSenate, "session-12", "Health Policy")
	other := testsupport.NewVideo(t, store, registry.SourceSenate, "session-13", "Elections")

	for _, content := range []string{"first pass", "operator retry pass"} {
		if err := store.AddTranscript(ctx, &registry.Transcript{
			VideoID:  video.ID,
			Provider: "whisperx",
			Content:  content,
		}); err != nil {
			t.Fatalf("AddTranscript failed: %v", err)
		}
	}
	if err := store.AddTranscript(ctx, &registry.Transcript{
		VideoID:  other.ID,
		Provider: "whisperx",
		Content:  "unrelated",
	}); err != nil {
		t.Fatalf("AddTranscript failed: %v", err)
	}

	transcripts, err := store.TranscriptsForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("TranscriptsForVideo failed: %v", err)
	}
	if len(transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(transcripts))
	}
	if transcripts[0].Content != "first pass" {
		t.Fatalf("expected oldest first, got %q", transcripts[0].Content)
	}
}
