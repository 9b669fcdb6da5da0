package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rostrum/internal/logging"
	"rostrum/internal/registry"
	"rostrum/internal/services"
)

func (m *Manager) runWorker(ctx context.Context, step pipelineStep, owner string) {
	defer m.wg.Done()

	logger := m.logger.With(
		logging.String(logging.FieldStage, step.name),
		logging.String("worker", owner),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		video, err := m.store.ClaimNext(ctx, step.ready, owner)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.ErrorContext(ctx, "claim failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"))
			m.pause(ctx, m.cfg.Workflow.ErrorRetryDuration())
			continue
		}
		if video == nil {
			m.pause(ctx, m.cfg.Workflow.PollDuration())
			continue
		}

		if err := m.processVideo(ctx, step, logger, video); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// processVideo runs one claimed video through the step handler and commits
// the outcome. The claim already moved the video into the in-progress stage,
// so every exit path below must hand the lease back: advance, rollback, or
// terminal failure.
func (m *Manager) processVideo(ctx context.Context, step pipelineStep, logger *slog.Logger, video *registry.Video) error {
	stageCtx := services.WithVideoID(ctx, video.ID)
	stageCtx = services.WithStage(stageCtx, step.name)
	stageCtx = services.WithSource(stageCtx, string(video.Source))

	logger.InfoContext(stageCtx, "step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.String(logging.FieldVideoID, video.ID),
		logging.Int("attempt", video.AttemptCount),
		logging.String("title", video.Title))
	started := time.Now()

	if err := step.handler.Prepare(stageCtx, video); err != nil {
		return m.handleStepFailure(stageCtx, step, logger, video, err)
	}

	execErr := m.executeWithTimeout(stageCtx, step, video)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			// Shutdown, not a step failure. The lease stays put for the
			// sweeper or the next daemon start to reclaim.
			logger.DebugContext(stageCtx, "step interrupted by shutdown",
				logging.String(logging.FieldVideoID, video.ID))
			return execErr
		}
		return m.handleStepFailure(stageCtx, step, logger, video, execErr)
	}

	if err := m.store.CommitAdvance(stageCtx, video, step.active, step.done); err != nil {
		if errors.Is(err, registry.ErrStaleState) {
			logger.WarnContext(stageCtx, "commit lost to concurrent transition; discarding result",
				logging.String(logging.FieldVideoID, video.ID),
				logging.String(logging.FieldEventType, "stale_commit"))
			return nil
		}
		m.setLastError(err)
		logger.ErrorContext(stageCtx, "commit failed", logging.Error(err),
			logging.String(logging.FieldVideoID, video.ID))
		return err
	}

	logger.InfoContext(stageCtx, "step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.String(logging.FieldVideoID, video.ID),
		logging.String("next_stage", string(video.Stage)),
		logging.Duration("step_duration", time.Since(started)))

	if video.Stage == registry.StageTranscribed {
		if err := m.notifier.NotifyVideoTranscribed(stageCtx, video); err != nil {
			logger.WarnContext(stageCtx, "transcribed notification failed", logging.Error(err))
		}
	}
	return nil
}

func (m *Manager) executeWithTimeout(ctx context.Context, step pipelineStep, video *registry.Video) error {
	timeout := m.cfg.Workflow.StageTimeout(step.name)
	if timeout <= 0 {
		return step.handler.Execute(ctx, video)
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := step.handler.Execute(execCtx, video)
	if err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, step.name, video.ID,
			"step exceeded its deadline", context.DeadlineExceeded)
	}
	return err
}

// handleStepFailure decides between the retry path and the terminal one.
// Permanent errors skip the remaining attempt budget; everything else rolls
// back to the ready stage until the budget runs out.
func (m *Manager) handleStepFailure(ctx context.Context, step pipelineStep, logger *slog.Logger, video *registry.Video, stepErr error) error {
	m.setLastError(stepErr)
	reason := stepErr.Error()

	if services.IsPermanent(stepErr) {
		logger.ErrorContext(ctx, "step failed permanently",
			logging.Error(stepErr),
			logging.String(logging.FieldVideoID, video.ID),
			logging.String(logging.FieldEventType, "step_failed_permanent"))
		if err := m.store.FailPermanently(ctx, video, reason); err != nil {
			if errors.Is(err, registry.ErrStaleState) {
				return nil
			}
			logger.ErrorContext(ctx, "persist permanent failure", logging.Error(err))
			return err
		}
		m.notifyFailure(ctx, logger, video.ID, reason)
		return stepErr
	}

	updated, err := m.store.RecordFailure(ctx, video.ID, step.active, reason)
	if err != nil {
		if errors.Is(err, registry.ErrStaleState) {
			return nil
		}
		logger.ErrorContext(ctx, "persist step failure", logging.Error(err))
		return err
	}

	if updated != nil && updated.Stage == registry.StageFailed {
		logger.ErrorContext(ctx, "step failed; attempt budget exhausted",
			logging.Error(stepErr),
			logging.String(logging.FieldVideoID, video.ID),
			logging.Int("attempts", updated.AttemptCount),
			logging.String(logging.FieldEventType, "step_failed_exhausted"))
		m.notifyFailure(ctx, logger, video.ID, reason)
	} else {
		logger.WarnContext(ctx, "step failed; video requeued",
			logging.Error(stepErr),
			logging.String(logging.FieldVideoID, video.ID),
			logging.Int("attempts", video.AttemptCount),
			logging.String(logging.FieldEventType, "step_failed_retry"))
	}
	return stepErr
}

func (m *Manager) notifyFailure(ctx context.Context, logger *slog.Logger, videoID, reason string) {
	video, err := m.store.GetByID(ctx, videoID)
	if err != nil || video == nil {
		return
	}
	if err := m.notifier.NotifyVideoFailed(ctx, video, reason); err != nil {
		logger.WarnContext(ctx, "failure notification failed", logging.Error(err))
	}
}

func (m *Manager) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
