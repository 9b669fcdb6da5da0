package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rostrum/internal/config"
	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
)

// Sweeper reclaims leases whose workers stopped making progress: a crashed
// daemon, a killed process, a partitioned host. A stuck video with attempt
// budget left goes back to its ready stage without another attempt charge;
// one with the budget spent is failed outright.
type Sweeper struct {
	cfg      *config.Config
	store    *registry.Store
	logger   *slog.Logger
	notifier notifications.Service
}

// SweepResult summarizes one recovery pass.
type SweepResult struct {
	Examined int
	Requeued int
	Failed   int
}

// NewSweeper builds a recovery sweeper.
func NewSweeper(cfg *config.Config, store *registry.Store, logger *slog.Logger, notifier notifications.Service) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Sweeper{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "sweeper"),
		notifier: notifier,
	}
}

// StartLoop runs recovery passes until the context ends. The loop runs at
// half the stuck threshold so an orphaned lease waits at most 1.5 thresholds
// before reclaim.
func (s *Sweeper) StartLoop(ctx context.Context) {
	threshold := s.cfg.Workflow.StuckThreshold()
	if threshold <= 0 {
		return
	}
	interval := threshold / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.WarnContext(ctx, "recovery sweep failed", logging.Error(err))
			}
		}
	}
}

// RunOnce performs one recovery pass over every in-progress stage.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	threshold := s.cfg.Workflow.StuckThreshold()
	if threshold <= 0 {
		return SweepResult{}, nil
	}
	return s.sweep(ctx, time.Now().UTC().Add(-threshold))
}

func (s *Sweeper) sweep(ctx context.Context, cutoff time.Time) (SweepResult, error) {
	var result SweepResult

	stuck, err := s.store.FindStuck(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("find stuck videos: %w", err)
	}
	result.Examined = len(stuck)

	for _, video := range stuck {
		requeued, err := s.reclaim(ctx, video)
		if err != nil {
			if errors.Is(err, registry.ErrStaleState) {
				// The worker finished between our read and the reclaim.
				continue
			}
			s.logger.WarnContext(ctx, "reclaim failed",
				logging.String(logging.FieldVideoID, video.ID),
				logging.Error(err))
			continue
		}
		if requeued {
			result.Requeued++
		} else {
			result.Failed++
		}
		if notifyErr := s.notifier.NotifyLeaseReclaimed(ctx, video, requeued); notifyErr != nil {
			s.logger.WarnContext(ctx, "reclaim notification failed", logging.Error(notifyErr))
		}
	}

	if result.Examined > 0 {
		s.logger.InfoContext(ctx, "recovery sweep complete",
			logging.Int("examined", result.Examined),
			logging.Int("requeued", result.Requeued),
			logging.Int("failed", result.Failed),
			logging.String(logging.FieldEventType, "sweep_complete"))
	}
	return result, nil
}

// reclaim returns true when the video went back to its ready stage and false
// when it was failed for an exhausted budget.
func (s *Sweeper) reclaim(ctx context.Context, video *registry.Video) (bool, error) {
	age := "unknown"
	if video.LeasedAt != nil {
		age = time.Since(*video.LeasedAt).Round(time.Second).String()
	}
	reason := fmt.Sprintf("lease reclaimed after %s without progress (owner %s)", age, video.LeaseOwner)

	// Reclaim matches the scanned lease pair, so a record the owner finished
	// or another worker re-claimed in the meantime comes back ErrStaleState
	// instead of losing its newer lease.
	requeued, err := s.store.Reclaim(ctx, video, reason)
	if err != nil {
		return false, err
	}
	if !requeued {
		s.logger.WarnContext(ctx, "stuck video failed; attempt budget exhausted",
			logging.String(logging.FieldVideoID, video.ID),
			logging.String(logging.FieldStage, string(video.Stage)),
			logging.Int("attempts", video.AttemptCount))
		return false, nil
	}
	s.logger.InfoContext(ctx, "stuck video requeued",
		logging.String(logging.FieldVideoID, video.ID),
		logging.String(logging.FieldStage, string(video.Stage)),
		logging.Int("attempts", video.AttemptCount),
		logging.String("lease_owner", video.LeaseOwner))
	return true, nil
}
