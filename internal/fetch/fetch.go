package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"log/slog"

	"rostrum/internal/config"
	"rostrum/internal/fileutil"
	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/services"
	"rostrum/internal/stage"
)

const partialSuffix = ".partial"

// commandRunner abstracts ffmpeg invocation so tests can observe arguments
// and simulate outcomes without the binary installed.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// statfsFunc reports total and free bytes for the filesystem holding path.
type statfsFunc func(path string) (total uint64, free uint64, err error)

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}

// Step is the pipeline handler that downloads resolved videos.
type Step struct {
	cfg    *config.Config
	logger *slog.Logger
	client *http.Client
	run    commandRunner
	statfs statfsFunc
	ffmpeg string
}

var _ stage.Handler = (*Step)(nil)

// NewStep builds the fetch handler.
func NewStep(cfg *config.Config, logger *slog.Logger) *Step {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Fetch.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 0 // no per-request limit; the workflow stage timeout bounds the download
	}
	return &Step{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "fetch"),
		client: &http.Client{Timeout: timeout},
		run:    runCommand,
		statfs: realStatfs,
		ffmpeg: cfg.FFmpegBinary(),
	}
}

// Prepare implements stage.Handler. It validates the resolved URL and runs
// the free-space preflight so a full disk fails fast instead of mid-download.
func (s *Step) Prepare(_ context.Context, video *registry.Video) error {
	if strings.TrimSpace(video.StreamURL) == "" {
		return services.Wrap(services.ErrValidation, "fetch", video.ID, "video has no stream url", nil)
	}
	if err := os.MkdirAll(s.cfg.Paths.MediaDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "media dir", "create media directory", err)
	}
	if err := os.MkdirAll(s.stagingDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "staging dir", "create staging directory", err)
	}
	return s.checkFreeSpace()
}

// stagingDir is where in-flight downloads accumulate before the final move.
func (s *Step) stagingDir() string {
	return filepath.Join(s.cfg.Paths.StagingDir, "fetch")
}

func (s *Step) checkFreeSpace() error {
	minFree := uint64(s.cfg.Fetch.MinFreeGiB) * 1024 * 1024 * 1024
	if minFree == 0 {
		return nil
	}
	_, free, err := s.statfs(s.cfg.Paths.MediaDir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "media dir", "inspect free space", err)
	}
	if free < minFree {
		return services.Wrap(services.ErrTransient, "fetch", "media dir",
			fmt.Sprintf("only %d GiB free, need %d GiB", free/(1024*1024*1024), s.cfg.Fetch.MinFreeGiB), nil)
	}
	return nil
}

// Execute implements stage.Handler. A completed file from an earlier attempt
// short-circuits the download so retries after a crashed commit are cheap.
func (s *Step) Execute(ctx context.Context, video *registry.Video) error {
	finalPath := filepath.Join(s.cfg.Paths.MediaDir, MediaFileName(video))

	if info, err := os.Stat(finalPath); err == nil && info.Size() > 0 {
		s.logger.InfoContext(ctx, "media file already present",
			logging.String(logging.FieldVideoID, video.ID),
			logging.String("media_path", finalPath))
		video.MediaPath = finalPath
		return nil
	}

	// The download lands in the staging tree and only a complete file moves
	// into the media directory, so a crash mid-download never leaves a
	// half-written file where the transcriber could find it.
	partialPath := filepath.Join(s.stagingDir(), MediaFileName(video)+partialSuffix)
	defer os.Remove(partialPath)

	var err error
	if isHLS(video.StreamURL) {
		err = s.remuxHLS(ctx, video.StreamURL, partialPath)
	} else {
		err = s.downloadDirect(ctx, video.StreamURL, partialPath)
	}
	if err != nil {
		return err
	}

	if err := fileutil.MoveFile(partialPath, finalPath); err != nil {
		return services.Wrap(services.ErrTransient, "fetch", video.ID, "finalize media file", err)
	}

	video.MediaPath = finalPath
	s.logger.InfoContext(ctx, "downloaded media file",
		logging.String(logging.FieldVideoID, video.ID),
		logging.String(logging.FieldSource, string(video.Source)),
		logging.String("media_path", finalPath))
	return nil
}

// HealthCheck implements stage.Handler. ffmpeg is required for HLS remuxing,
// so its absence makes the step unhealthy even though direct downloads would
// still work.
func (s *Step) HealthCheck(context.Context) stage.Health {
	if _, err := exec.LookPath(s.ffmpeg); err != nil {
		return stage.Unhealthy("fetch", fmt.Sprintf("%s not found in PATH", s.ffmpeg))
	}
	if strings.TrimSpace(s.cfg.Paths.MediaDir) == "" {
		return stage.Unhealthy("fetch", "media directory not configured")
	}
	return stage.Healthy("fetch")
}

func (s *Step) downloadDirect(ctx context.Context, streamURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "download", "build request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "download", streamURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return classifyStatus(resp.StatusCode, streamURL)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "download", "create partial file", err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "download", streamURL, err)
	}
	if written == 0 {
		return services.Wrap(services.ErrTransient, "fetch", "download",
			fmt.Sprintf("%s returned an empty body", streamURL), nil)
	}
	return nil
}

func (s *Step) remuxHLS(ctx context.Context, streamURL, destPath string) error {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", streamURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-f", "mp4",
		destPath,
	}
	output, err := s.run(ctx, s.ffmpeg, args...)
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "fetch", "remux", streamURL, ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "fetch", "remux",
			fmt.Sprintf("%s: %s", streamURL, tailOf(output)), err)
	}
	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "fetch", "remux",
			fmt.Sprintf("%s produced no output", streamURL), nil)
	}
	return nil
}

func classifyStatus(status int, streamURL string) error {
	detail := fmt.Sprintf("%s: status %d", streamURL, status)
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return services.Wrap(services.ErrNotFound, "fetch", "download", detail, nil)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrTransient, "fetch", "download", detail, nil)
	case status >= 400 && status < 500:
		return services.Wrap(services.ErrValidation, "fetch", "download", detail, nil)
	default:
		return services.Wrap(services.ErrTransient, "fetch", "download", detail, nil)
	}
}

func isHLS(streamURL string) bool {
	trimmed := streamURL
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.HasSuffix(strings.ToLower(trimmed), ".m3u8")
}

// MediaFileName derives the on-disk file name for a video. Registry IDs are
// "source:naturalKey"; the colon is replaced so the name stays portable.
func MediaFileName(video *registry.Video) string {
	name := strings.ReplaceAll(video.ID, ":", "-")
	name = sanitizeFileName(name)
	return name + ".mp4"
}

func sanitizeFileName(value string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	value = replacer.Replace(value)
	value = strings.Trim(value, "-_.")
	if value == "" {
		return "video"
	}
	return value
}

func tailOf(output []byte) string {
	const maxTail = 400
	text := strings.TrimSpace(string(output))
	if len(text) <= maxTail {
		return text
	}
	return "..." + text[len(text)-maxTail:]
}
