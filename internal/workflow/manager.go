package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"rostrum/internal/config"
	"rostrum/internal/discovery"
	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
	"rostrum/internal/stage"
)

// StepSet bundles the concrete pipeline handlers the manager orchestrates.
type StepSet struct {
	Resolver    stage.Handler
	Fetcher     stage.Handler
	Transcriber stage.Handler
}

// pipelineStep binds a handler to the stage pair it operates on.
type pipelineStep struct {
	name    string
	handler stage.Handler
	ready   registry.Stage
	active  registry.Stage
	done    registry.Stage
	workers int
}

// Discoverer triggers one discovery scan. Satisfied by discovery.Coordinator.
type Discoverer interface {
	RunLookback(ctx context.Context) (discovery.Summary, error)
	RunBackfill(ctx context.Context) (discovery.Summary, error)
	RunSince(ctx context.Context, days int) (discovery.Summary, error)
}

// Manager coordinates the pipeline workers, the recovery sweeper, and the
// discovery schedule.
type Manager struct {
	cfg      *config.Config
	store    *registry.Store
	logger   *slog.Logger
	notifier notifications.Service

	steps      []pipelineStep
	sweeper    *Sweeper
	discoverer Discoverer

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *registry.Store, logger *slog.Logger, steps StepSet) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, steps, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *registry.Store, logger *slog.Logger, steps StepSet, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		notifier: notifier,
	}
	m.steps = []pipelineStep{
		{
			name:    "resolve",
			handler: steps.Resolver,
			ready:   registry.StageDiscovered,
			active:  registry.StageResolving,
			done:    registry.StageResolved,
			workers: cfg.Workflow.ResolveWorkers,
		},
		{
			name:    "fetch",
			handler: steps.Fetcher,
			ready:   registry.StageResolved,
			active:  registry.StageDownloading,
			done:    registry.StageDownloaded,
			workers: cfg.Workflow.FetchWorkers,
		},
		{
			name:    "transcribe",
			handler: steps.Transcriber,
			ready:   registry.StageDownloaded,
			active:  registry.StageTranscribing,
			done:    registry.StageTranscribed,
			workers: cfg.Workflow.TranscribeWorkers,
		},
	}
	m.sweeper = NewSweeper(cfg, store, logger, notifier)
	return m
}

// SetDiscoverer attaches the discovery coordinator the manager schedules.
// Optional: a manager without one only runs the pipeline workers.
func (m *Manager) SetDiscoverer(d Discoverer) {
	m.discoverer = d
}

// Start launches the worker pools, the sweeper loop, and the discovery
// schedule. It returns immediately; Stop tears everything down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	for _, step := range m.steps {
		if step.handler == nil {
			return fmt.Errorf("workflow step %s has no handler", step.name)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, step := range m.steps {
		workers := step.workers
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			m.wg.Add(1)
			go m.runWorker(runCtx, step, workerIdentity(step.name, i))
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweeper.StartLoop(runCtx)
	}()

	if m.discoverer != nil {
		m.wg.Add(1)
		go m.runDiscoveryLoop(runCtx)
	}

	m.logger.InfoContext(ctx, "workflow started",
		logging.Int("steps", len(m.steps)),
		logging.Duration("poll_interval", m.cfg.Workflow.PollDuration()))
	return nil
}

// Stop terminates background processing and waits for the workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the manager has active workers.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) runDiscoveryLoop(ctx context.Context) {
	defer m.wg.Done()

	// First run backfills when the registry is empty; otherwise the
	// steady-state lookback window applies.
	if err := m.runDiscovery(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.WarnContext(ctx, "initial discovery failed", logging.Error(err))
	}

	interval := m.cfg.Workflow.DiscoveryInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.runDiscovery(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.WarnContext(ctx, "scheduled discovery failed", logging.Error(err))
			}
		}
	}
}

func (m *Manager) runDiscovery(ctx context.Context, initial bool) error {
	scan := m.discoverer.RunLookback
	if initial {
		if health, err := m.store.Health(ctx); err == nil && health.Total == 0 {
			scan = m.discoverer.RunBackfill
		}
	}
	summary, err := scan(ctx)
	if err != nil {
		return err
	}
	if notifyErr := m.notifier.NotifyDiscoveryCompleted(ctx, summary.String(), summary.TotalNew()); notifyErr != nil {
		m.logger.WarnContext(ctx, "discovery notification failed", logging.Error(notifyErr))
	}
	return nil
}

// DiscoverNow triggers an immediate scan outside the schedule. A positive
// days value overrides the configured lookback window.
func (m *Manager) DiscoverNow(ctx context.Context, days int) (discovery.Summary, error) {
	if m.discoverer == nil {
		return discovery.Summary{}, errors.New("discovery not configured")
	}
	if days > 0 {
		return m.discoverer.RunSince(ctx, days)
	}
	return m.discoverer.RunLookback(ctx)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// workerIdentity builds a lease owner string unique across hosts, processes,
// and workers. Claimed rows are read back by owner, so collisions would let
// two workers process the same video.
func workerIdentity(step string, index int) string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}
	return fmt.Sprintf("%s-%d-%s-%d-%s", hostname, os.Getpid(), step, index, uuid.NewString()[:8])
}
