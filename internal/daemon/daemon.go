package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"rostrum/internal/config"
	"rostrum/internal/discovery"
	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
	"rostrum/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *registry.Store
	workflow *workflow.Manager
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	Workflow       workflow.StatusSummary
	RegistryDBPath string
	LockFilePath   string
	PID            int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *registry.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		logPath:  filepath.Join(cfg.Paths.LogDir, "rostrum.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another rostrum daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("rostrum daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("rostrum daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// DiscoverNow triggers an immediate discovery scan. A positive days value
// overrides the configured lookback window.
func (d *Daemon) DiscoverNow(ctx context.Context, days int) (discovery.Summary, error) {
	return d.workflow.DiscoverNow(ctx, days)
}

// ListVideos returns registry entries filtered by optional stages.
func (d *Daemon) ListVideos(ctx context.Context, stages []registry.Stage) ([]*registry.Video, error) {
	if d.store == nil {
		return nil, errors.New("registry store unavailable")
	}
	return d.store.List(ctx, stages...)
}

// GetVideo returns one registry entry, or nil when unknown.
func (d *Daemon) GetVideo(ctx context.Context, id string) (*registry.Video, error) {
	if d.store == nil {
		return nil, errors.New("registry store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// RetryFailed resets failed videos (optionally a subset) for reprocessing.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	if d.store == nil {
		return 0, errors.New("registry store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// RegistryHealth returns aggregate registry diagnostics.
func (d *Daemon) RegistryHealth(ctx context.Context) (registry.HealthSummary, error) {
	if d.store == nil {
		return registry.HealthSummary{}, errors.New("registry store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (registry.DatabaseHealth, error) {
	if d.store == nil {
		return registry.DatabaseHealth{}, errors.New("registry store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// SearchTranscripts runs a full-text search over stored transcripts.
func (d *Daemon) SearchTranscripts(ctx context.Context, query string, limit int) ([]registry.SearchHit, error) {
	if d.store == nil {
		return nil, errors.New("registry store unavailable")
	}
	return d.store.SearchTranscripts(ctx, query, limit)
}

// TranscriptsForVideo returns the transcripts stored for one video.
func (d *Daemon) TranscriptsForVideo(ctx context.Context, videoID string) ([]*registry.Transcript, error) {
	if d.store == nil {
		return nil, errors.New("registry store unavailable")
	}
	return d.store.TranscriptsForVideo(ctx, videoID)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:        d.running.Load(),
		Workflow:       summary,
		RegistryDBPath: d.store.Path(),
		LockFilePath:   d.lockPath,
		PID:            os.Getpid(),
	}
}
