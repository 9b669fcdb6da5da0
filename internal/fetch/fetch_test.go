package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/services"
	"rostrum/internal/testsupport"
)

func newTestStep(t *testing.T) *Step {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	step := NewStep(cfg, logging.NewNop())
	step.statfs = func(string) (uint64, uint64, error) {
		return 100 << 30, 100 << 30, nil
	}
	return step
}

func resolvedVideo(streamURL string) *registry.Video {
	return &registry.Video{
		ID:        registry.VideoID(registry.SourceHouse, "HOUSE-02202025"),
		Source:    registry.SourceHouse,
		Stage:     registry.StageDownloading,
		StreamURL: streamURL,
	}
}

func TestExecuteDownloadsDirectStream(t *testing.T) {
	const payload = "not really an mp4 but bytes all the same"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	step := newTestStep(t)
	step.client = server.Client()

	video := resolvedVideo(server.URL + "/HOUSE-02202025.mp4")
	if err := step.Prepare(context.Background(), video); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := step.Execute(context.Background(), video); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(video.MediaPath)
	if err != nil {
		t.Fatalf("read media file: %v", err)
	}
	if string(data) != payload {
		t.Errorf("media file content mismatch")
	}
	staged := filepath.Join(step.stagingDir(), MediaFileName(video)+partialSuffix)
	if _, err := os.Stat(staged); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial file left behind in staging after successful download")
	}
	if filepath.Dir(video.MediaPath) != step.cfg.Paths.MediaDir {
		t.Errorf("media path %q not in media directory", video.MediaPath)
	}
}

func TestExecuteShortCircuitsExistingFile(t *testing.T) {
	step := newTestStep(t)
	video := resolvedVideo("http://unused.invalid/video.mp4")

	existing := filepath.Join(step.cfg.Paths.MediaDir, MediaFileName(video))
	if err := os.MkdirAll(step.cfg.Paths.MediaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("already downloaded"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := step.Execute(context.Background(), video); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if video.MediaPath != existing {
		t.Errorf("MediaPath = %q, want %q", video.MediaPath, existing)
	}
}

func TestExecuteClassifiesHTTPFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "missing", status: http.StatusNotFound, permanent: true},
		{name: "forbidden", status: http.StatusForbidden, permanent: true},
		{name: "throttled", status: http.StatusTooManyRequests, permanent: false},
		{name: "server error", status: http.StatusBadGateway, permanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			step := newTestStep(t)
			step.client = server.Client()

			err := step.Execute(context.Background(), resolvedVideo(server.URL+"/gone.mp4"))
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if got := services.IsPermanent(err); got != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v (err: %v)", got, tt.permanent, err)
			}
		})
	}
}

func TestExecuteRemuxesHLSStream(t *testing.T) {
	step := newTestStep(t)

	var gotName string
	var gotArgs []string
	step.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		// ffmpeg writes the output file named by the last argument.
		return nil, os.WriteFile(args[len(args)-1], []byte("remuxed"), 0o644)
	}

	video := resolvedVideo("https://cdn.example.com/abc/Default/HLS/out.m3u8")
	video.Source = registry.SourceSenate
	video.ID = registry.VideoID(registry.SourceSenate, "abc")

	if err := step.Prepare(context.Background(), video); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := step.Execute(context.Background(), video); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotName != "ffmpeg" {
		t.Errorf("remux binary = %q, want ffmpeg", gotName)
	}
	// ffmpeg writes into the staging tree, never into the media directory.
	if remuxDest := gotArgs[len(gotArgs)-1]; filepath.Dir(remuxDest) != step.stagingDir() {
		t.Errorf("remux destination %q not in staging directory", remuxDest)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "-c copy") {
		t.Errorf("remux args missing stream copy: %v", gotArgs)
	}
	if !strings.Contains(joined, video.StreamURL) {
		t.Errorf("remux args missing input url: %v", gotArgs)
	}
	if video.MediaPath == "" {
		t.Fatal("Execute did not set MediaPath")
	}
	if _, err := os.Stat(video.MediaPath); err != nil {
		t.Errorf("remuxed file missing: %v", err)
	}
}

func TestExecuteReportsRemuxFailure(t *testing.T) {
	step := newTestStep(t)
	step.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("out.m3u8: server returned 500"), errors.New("exit status 1")
	}

	video := resolvedVideo("https://cdn.example.com/abc/Default/HLS/out.m3u8")
	err := step.Execute(context.Background(), video)
	if err == nil {
		t.Fatal("expected remux failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Errorf("expected external tool classification, got %v", err)
	}
	if services.IsPermanent(err) {
		t.Errorf("remux failures should be retryable, got %v", err)
	}
}

func TestPrepareRejectsMissingStreamURL(t *testing.T) {
	step := newTestStep(t)
	video := resolvedVideo("")
	err := step.Prepare(context.Background(), video)
	if err == nil {
		t.Fatal("expected error for missing stream url")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPrepareFailsWhenDiskNearlyFull(t *testing.T) {
	step := newTestStep(t)
	step.statfs = func(string) (uint64, uint64, error) {
		return 100 << 30, 1 << 20, nil
	}

	err := step.Prepare(context.Background(), resolvedVideo("http://example.com/a.mp4"))
	if err == nil {
		t.Fatal("expected free-space preflight failure")
	}
	if services.IsPermanent(err) {
		t.Errorf("low disk space should be retryable, got %v", err)
	}
}

func TestIsHLSIgnoresQueryParams(t *testing.T) {
	if !isHLS("https://cdn.example.com/out.m3u8?token=abc") {
		t.Error("m3u8 with query params should be HLS")
	}
	if isHLS("https://example.com/video.mp4") {
		t.Error("mp4 should not be HLS")
	}
}
