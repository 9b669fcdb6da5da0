package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"rostrum/internal/config"
	"rostrum/internal/language"
)

// Command names for the external tools the transcriber shells out to.
const (
	uvxCommand = "uvx"

	pypiIndexURL = "https://pypi.org/simple"

	// Provider is recorded on every transcript row this engine produces.
	Provider = "whisperx"
)

// commandRunner abstracts external tool invocation for tests.
type commandRunner func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd.CombinedOutput()
}

// Engine wraps ffmpeg audio extraction and WhisperX invocation.
type Engine struct {
	cfg    config.Transcription
	ffmpeg string
	run    commandRunner
}

// NewEngine builds a transcription engine from configuration.
func NewEngine(cfg config.Transcription, ffmpegBinary string) *Engine {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Engine{cfg: cfg, ffmpeg: ffmpegBinary, run: runCommand}
}

// WithCommandRunner replaces the external tool runner (for testing).
func (e *Engine) WithCommandRunner(run commandRunner) {
	e.run = run
}

// Result carries the parsed output of one transcription run.
type Result struct {
	Text         string
	SegmentsJSON string
	VTTPath      string
}

// ExtractAudio pulls the audio track out of a media file as mono 16kHz WAV,
// the input format WhisperX wants.
func (e *Engine) ExtractAudio(ctx context.Context, mediaPath, audioPath string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", mediaPath,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		audioPath,
	}
	if output, err := e.run(ctx, nil, e.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX on an extracted audio file, writing its output
// files into outputDir and returning the parsed result.
func (e *Engine) Transcribe(ctx context.Context, audioPath, outputDir string) (Result, error) {
	var result Result

	if audioPath == "" {
		return result, fmt.Errorf("transcribe: audio path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := e.buildArgs(audioPath, outputDir)
	if output, err := e.run(ctx, e.environ(), uvxCommand, args...); err != nil {
		return result, fmt.Errorf("whisperx: %w: %s", err, tailOf(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	result.VTTPath = filepath.Join(outputDir, baseName+".vtt")

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return result, fmt.Errorf("whisperx: read output: %w", err)
	}
	text, err := transcriptText(raw)
	if err != nil {
		return result, err
	}
	result.Text = text
	result.SegmentsJSON = string(raw)
	return result, nil
}

// buildArgs constructs the uvx command line for WhisperX.
func (e *Engine) buildArgs(audioPath, outputDir string) []string {
	args := []string{
		"--index-url", pypiIndexURL,
		"whisperx",
		audioPath,
		"--model", e.cfg.Model,
		"--output_dir", outputDir,
		"--output_format", "all",
		"--device", e.cfg.Device,
		"--compute_type", e.cfg.ComputeType,
		"--vad_method", "silero",
		"--segment_resolution", "sentence",
	}
	if iso := language.ToISO2(e.cfg.Language); iso != "" {
		args = append(args, "--language", iso)
	}
	return args
}

// environ returns the extra environment for WhisperX runs. The model cache
// directory keeps repeated runs from re-downloading checkpoints; the torch
// override keeps pyannote checkpoints loadable under Torch 2.6+.
func (e *Engine) environ() []string {
	env := []string{"TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1"}
	if dir := strings.TrimSpace(e.cfg.CacheDir); dir != "" {
		env = append(env, "HF_HOME="+dir)
	}
	return env
}

// Segment is one transcribed span from the WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// ParseSegments decodes the segments from raw WhisperX JSON output.
func ParseSegments(raw []byte) ([]Segment, error) {
	var payload whisperXPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

func transcriptText(raw []byte) (string, error) {
	segments, err := ParseSegments(raw)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func tailOf(output []byte) string {
	const maxTail = 400
	text := strings.TrimSpace(string(output))
	if len(text) <= maxTail {
		return text
	}
	return "..." + text[len(text)-maxTail:]
}
