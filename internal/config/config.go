package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	StagingDir    string `toml:"staging_dir"`
	MediaDir      string `toml:"media_dir"`
	TranscriptDir string `toml:"transcript_dir"`
	LogDir        string `toml:"log_dir"`
}

// Workflow contains configuration for daemon timing, worker counts, and the
// retry and recovery budgets.
type Workflow struct {
	QueuePollInterval        int `toml:"queue_poll_interval"`
	ErrorRetryInterval       int `toml:"error_retry_interval"`
	MaxAttempts              int `toml:"max_attempts"`
	StuckThresholdMinutes    int `toml:"stuck_threshold_minutes"`
	DiscoveryIntervalMinutes int `toml:"discovery_interval_minutes"`
	ResolveWorkers           int `toml:"resolve_workers"`
	FetchWorkers             int `toml:"fetch_workers"`
	TranscribeWorkers        int `toml:"transcribe_workers"`
	ResolveTimeout           int `toml:"resolve_timeout"`
	FetchTimeout             int `toml:"fetch_timeout"`
	TranscribeTimeout        int `toml:"transcribe_timeout"`
}

// PollDuration returns the worker poll interval.
func (w Workflow) PollDuration() time.Duration {
	return time.Duration(w.QueuePollInterval) * time.Second
}

// ErrorRetryDuration returns the pause after a claim or store error.
func (w Workflow) ErrorRetryDuration() time.Duration {
	return time.Duration(w.ErrorRetryInterval) * time.Second
}

// StuckThreshold returns how long a lease may sit untouched before the
// sweeper treats it as orphaned.
func (w Workflow) StuckThreshold() time.Duration {
	return time.Duration(w.StuckThresholdMinutes) * time.Minute
}

// DiscoveryInterval returns the cadence of scheduled discovery runs.
func (w Workflow) DiscoveryInterval() time.Duration {
	return time.Duration(w.DiscoveryIntervalMinutes) * time.Minute
}

// StageTimeout returns the execution deadline for the named pipeline step.
func (w Workflow) StageTimeout(step string) time.Duration {
	switch step {
	case "resolve":
		return time.Duration(w.ResolveTimeout) * time.Second
	case "fetch":
		return time.Duration(w.FetchTimeout) * time.Second
	case "transcribe":
		return time.Duration(w.TranscribeTimeout) * time.Second
	default:
		return time.Duration(w.ResolveTimeout) * time.Second
	}
}

// Discovery contains configuration for the scheduled source scans.
type Discovery struct {
	Sources      []string `toml:"sources"`
	LookbackDays int      `toml:"lookback_days"`
	BackfillDays int      `toml:"backfill_days"`
}

// HouseSource contains configuration for the house archive scraper and
// resolver. The URLs are configurable so tests can point them at local
// servers.
type HouseSource struct {
	ArchiveURL    string `toml:"archive_url"`
	VideoFilesURL string `toml:"video_files_url"`
	PlayerURL     string `toml:"player_url"`
}

// SenateSource contains configuration for the senate media platform API.
type SenateSource struct {
	RecentFilesURL    string `toml:"recent_files_url"`
	ResolveURL        string `toml:"resolve_url"`
	SiteID            string `toml:"site_id"`
	PlayerURL         string `toml:"player_url"`
	StreamFallbackURL string `toml:"stream_fallback_url"`
}

// Transcription contains configuration for WhisperX invocation.
type Transcription struct {
	Model       string `toml:"model"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	Language    string `toml:"language"`
	CacheDir    string `toml:"cache_dir"`
}

// Fetch contains configuration for media downloads.
type Fetch struct {
	MinFreeGiB     int `toml:"min_free_gib"`
	RequestTimeout int `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Discovery      bool   `toml:"discovery"`
	Transcription  bool   `toml:"transcription"`
	Recovery       bool   `toml:"recovery"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Rostrum.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, media, transcript, and log directories
//   - Workflow: polling cadence, worker counts, retry budget, stuck threshold
//   - Discovery: enabled sources and scan windows
//   - Sources: per-chamber endpoint configuration
//   - Transcription: WhisperX model and runtime settings
//   - Fetch: download preflight and timeout settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	Discovery     Discovery     `toml:"discovery"`
	House         HouseSource   `toml:"house"`
	Senate        SenateSource  `toml:"senate"`
	Transcription Transcription `toml:"transcription"`
	Fetch         Fetch         `toml:"fetch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rostrum/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/rostrum/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rostrum.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DataDir,
		c.Paths.StagingDir,
		c.Paths.MediaDir,
		c.Paths.TranscriptDir,
		c.Paths.LogDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Transcription.CacheDir) != "" {
		// Best-effort; WhisperX recreates its cache on demand.
		_ = os.MkdirAll(c.Transcription.CacheDir, 0o755)
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "rostrumd.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "rostrumd.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction
// and stream remuxing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// SourceEnabled reports whether discovery is configured to scan a source.
func (c *Config) SourceEnabled(source string) bool {
	for _, configured := range c.Discovery.Sources {
		if strings.EqualFold(strings.TrimSpace(configured), source) {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
