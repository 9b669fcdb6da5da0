package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"rostrum/internal/config"
	"rostrum/internal/fileutil"
	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/services"
	"rostrum/internal/stage"
)

// Step is the pipeline handler that transcribes downloaded videos.
type Step struct {
	cfg    *config.Config
	store  *registry.Store
	engine *Engine
	logger *slog.Logger
}

var _ stage.Handler = (*Step)(nil)

// NewStep builds the transcribe handler.
func NewStep(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Step {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Step{
		cfg:    cfg,
		store:  store,
		engine: NewEngine(cfg.Transcription, cfg.FFmpegBinary()),
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Engine exposes the underlying engine so tests can inject a command runner.
func (s *Step) Engine() *Engine {
	return s.engine
}

// Prepare implements stage.Handler. The downloaded media file must exist and
// be non-empty before an expensive transcription run starts.
func (s *Step) Prepare(_ context.Context, video *registry.Video) error {
	path := strings.TrimSpace(video.MediaPath)
	if path == "" {
		return services.Wrap(services.ErrValidation, "transcribe", video.ID, "video has no media path", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcribe", video.ID, "media file missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "transcribe", video.ID, "media file is empty", nil)
	}
	if err := os.MkdirAll(s.cfg.Paths.TranscriptDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "transcript dir", "create transcript directory", err)
	}
	return nil
}

// Execute implements stage.Handler. The transcript row is persisted here and
// only its ID travels through the stage commit; a retry after a failed commit
// writes a fresh row rather than mutating the old one.
func (s *Step) Execute(ctx context.Context, video *registry.Video) error {
	workDir := filepath.Join(s.cfg.Paths.StagingDir, "transcribe", workDirName(video))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", video.ID, "create work directory", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "audio.wav")
	if err := s.engine.ExtractAudio(ctx, video.MediaPath, audioPath); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "transcribe", video.ID, "audio extraction", ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "transcribe", video.ID, "audio extraction", err)
	}

	result, err := s.engine.Transcribe(ctx, audioPath, workDir)
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "transcribe", video.ID, "whisperx run", ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "transcribe", video.ID, "whisperx run", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return services.Wrap(services.ErrExternalTool, "transcribe", video.ID, "whisperx produced no text", nil)
	}

	vttDest := filepath.Join(s.cfg.Paths.TranscriptDir, workDirName(video)+".vtt")
	if _, err := os.Stat(result.VTTPath); err == nil {
		if err := fileutil.CopyFile(result.VTTPath, vttDest); err != nil {
			return services.Wrap(services.ErrConfiguration, "transcribe", video.ID, "store vtt file", err)
		}
	} else {
		vttDest = ""
	}

	transcript := &registry.Transcript{
		VideoID:      video.ID,
		Provider:     Provider,
		Content:      result.Text,
		SegmentsJSON: result.SegmentsJSON,
		VTTPath:      vttDest,
	}
	if err := s.store.AddTranscript(ctx, transcript); err != nil {
		return services.Wrap(services.ErrTransient, "transcribe", video.ID, "persist transcript", err)
	}

	video.TranscriptID = transcript.ID
	s.logger.InfoContext(ctx, "transcribed video",
		logging.String(logging.FieldVideoID, video.ID),
		logging.String("transcript_id", transcript.ID),
		logging.Int("characters", len(result.Text)))
	return nil
}

// HealthCheck implements stage.Handler. Both external tools must resolve on
// PATH for the step to run.
func (s *Step) HealthCheck(context.Context) stage.Health {
	for _, binary := range []string{s.engine.ffmpeg, uvxCommand} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("transcribe", fmt.Sprintf("%s not found in PATH", binary))
		}
	}
	return stage.Healthy("transcribe")
}

func workDirName(video *registry.Video) string {
	return strings.ReplaceAll(video.ID, ":", "-")
}
