package workflow

import (
	"context"

	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	StageStats map[registry.Stage]int
	StepHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	steps := make([]pipelineStep, len(m.steps))
	copy(steps, m.steps)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read registry stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(steps))
	for _, step := range steps {
		if step.handler == nil {
			continue
		}
		health[step.name] = step.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, StageStats: stats, StepHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}
