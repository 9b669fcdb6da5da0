package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
	"rostrum/internal/services"
	"rostrum/internal/stage"
	"rostrum/internal/testsupport"
)

type fakeHandler struct {
	prepareErr error
	execFn     func(ctx context.Context, video *registry.Video) error
	execCalls  int
}

func (f *fakeHandler) Prepare(context.Context, *registry.Video) error {
	return f.prepareErr
}

func (f *fakeHandler) Execute(ctx context.Context, video *registry.Video) error {
	f.execCalls++
	if f.execFn != nil {
		return f.execFn(ctx, video)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("fake")
}

func resolveStep(handler stage.Handler) pipelineStep {
	return pipelineStep{
		name:    "resolve",
		handler: handler,
		ready:   registry.StageDiscovered,
		active:  registry.StageResolving,
		done:    registry.StageResolved,
	}
}

func TestProcessVideoAdvancesStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := &fakeHandler{execFn: func(_ context.Context, video *registry.Video) error {
		video.StreamURL = "https://example.test/stream.mp4"
		return nil
	}}
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(),
		StepSet{Resolver: handler, Fetcher: &fakeHandler{}, Transcriber: &fakeHandler{}},
		notifications.NewNop())

	testsupport.NewVideo(t, store, registry.SourceHouse, "HOUSE-A", "Committee A")
	ctx := context.Background()

	claimed, err := store.ClaimNext(ctx, registry.StageDiscovered, "test-worker")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: video=%v err=%v", claimed, err)
	}

	if err := m.processVideo(ctx, resolveStep(handler), m.logger, claimed); err != nil {
		t.Fatalf("processVideo: %v", err)
	}

	stored, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Stage != registry.StageResolved {
		t.Errorf("stage = %s, want resolved", stored.Stage)
	}
	if stored.StreamURL == "" {
		t.Error("stream url not persisted by commit")
	}
	if stored.AttemptCount != 0 {
		t.Errorf("attempt count = %d, want 0 after advance", stored.AttemptCount)
	}
	if stored.LeaseOwner != "" || stored.LeasedAt != nil {
		t.Error("lease not cleared after advance")
	}
}

func TestProcessVideoRetriesUntilBudgetExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(2))
	store := testsupport.MustOpenStore(t, cfg)
	handler := &fakeHandler{execFn: func(context.Context, *registry.Video) error {
		return services.Wrap(services.ErrTransient, "resolve", "", "archive flaky", nil)
	}}
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(),
		StepSet{Resolver: handler, Fetcher: &fakeHandler{}, Transcriber: &fakeHandler{}},
		notifications.NewNop())

	testsupport.NewVideo(t, store, registry.SourceHouse, "HOUSE-B", "Committee B")
	ctx := context.Background()

	// First attempt: fails, video rolls back with its attempt charged.
	claimed, err := store.ClaimNext(ctx, registry.StageDiscovered, "w1")
	if err != nil || claimed == nil {
		t.Fatalf("first claim: video=%v err=%v", claimed, err)
	}
	if err := m.processVideo(ctx, resolveStep(handler), m.logger, claimed); err == nil {
		t.Fatal("expected step error on first attempt")
	}
	stored, _ := store.GetByID(ctx, claimed.ID)
	if stored.Stage != registry.StageDiscovered {
		t.Fatalf("stage after first failure = %s, want discovered", stored.Stage)
	}
	if stored.AttemptCount != 1 {
		t.Fatalf("attempt count = %d, want 1 preserved on rollback", stored.AttemptCount)
	}

	// Second attempt: budget exhausted, video lands in failed.
	claimed, err = store.ClaimNext(ctx, registry.StageDiscovered, "w1")
	if err != nil || claimed == nil {
		t.Fatalf("second claim: video=%v err=%v", claimed, err)
	}
	if err := m.processVideo(ctx, resolveStep(handler), m.logger, claimed); err == nil {
		t.Fatal("expected step error on second attempt")
	}
	stored, _ = store.GetByID(ctx, claimed.ID)
	if stored.Stage != registry.StageFailed {
		t.Errorf("stage after exhausted budget = %s, want failed", stored.Stage)
	}
	if stored.FailedStage != registry.StageResolving {
		t.Errorf("failed stage = %s, want resolving", stored.FailedStage)
	}
	if stored.LastError == "" {
		t.Error("failure reason not recorded")
	}

	// The failed video must not be claimable.
	claimed, err = store.ClaimNext(ctx, registry.StageDiscovered, "w1")
	if err != nil {
		t.Fatalf("claim after failure: %v", err)
	}
	if claimed != nil {
		t.Errorf("failed video was claimed again: %v", claimed.ID)
	}
}

func TestProcessVideoFailsPermanentErrorsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	store := testsupport.MustOpenStore(t, cfg)
	handler := &fakeHandler{execFn: func(context.Context, *registry.Video) error {
		return services.Wrap(services.ErrNotFound, "resolve", "", "archive returned 404", nil)
	}}
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(),
		StepSet{Resolver: handler, Fetcher: &fakeHandler{}, Transcriber: &fakeHandler{}},
		notifications.NewNop())

	testsupport.NewVideo(t, store, registry.SourceHouse, "HOUSE-C", "Committee C")
	ctx := context.Background()

	claimed, err := store.ClaimNext(ctx, registry.StageDiscovered, "w1")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: video=%v err=%v", claimed, err)
	}
	if err := m.processVideo(ctx, resolveStep(handler), m.logger, claimed); err == nil {
		t.Fatal("expected step error")
	}

	stored, _ := store.GetByID(ctx, claimed.ID)
	if stored.Stage != registry.StageFailed {
		t.Errorf("stage = %s, want failed without burning remaining attempts", stored.Stage)
	}
	if handler.execCalls != 1 {
		t.Errorf("execute called %d times, want 1", handler.execCalls)
	}
}

func TestProcessVideoDiscardsWorkOnStaleCommit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// The handler simulates another actor transitioning the video mid-step.
	handler := &fakeHandler{}
	handler.execFn = func(_ context.Context, video *registry.Video) error {
		_, err := store.Reclaim(ctx, video, "swept by another actor")
		return err
	}
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(),
		StepSet{Resolver: handler, Fetcher: &fakeHandler{}, Transcriber: &fakeHandler{}},
		notifications.NewNop())

	testsupport.NewVideo(t, store, registry.SourceHouse, "HOUSE-D", "Committee D")

	claimed, err := store.ClaimNext(ctx, registry.StageDiscovered, "w1")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: video=%v err=%v", claimed, err)
	}
	if err := m.processVideo(ctx, resolveStep(handler), m.logger, claimed); err != nil {
		t.Fatalf("stale commit should be swallowed, got %v", err)
	}

	stored, _ := store.GetByID(ctx, claimed.ID)
	if stored.Stage != registry.StageDiscovered {
		t.Errorf("stage = %s, want the concurrent actor's state kept", stored.Stage)
	}
}

func TestManagerRunsPipelineEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	steps := StepSet{
		Resolver: &fakeHandler{execFn: func(_ context.Context, v *registry.Video) error {
			v.StreamURL = "https://example.test/stream.mp4"
			return nil
		}},
		Fetcher: &fakeHandler{execFn: func(_ context.Context, v *registry.Video) error {
			v.MediaPath = "/tmp/media.mp4"
			return nil
		}},
		Transcriber: &fakeHandler{execFn: func(_ context.Context, v *registry.Video) error {
			v.TranscriptID = "transcript-1"
			return nil
		}},
	}
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(), steps, notifications.NewNop())

	video := testsupport.NewVideo(t, store, registry.SourceSenate, "abc123", "Senate Session")

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		stored, err := store.GetByID(ctx, video.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Stage == registry.StageTranscribed {
			if stored.TranscriptID != "transcript-1" {
				t.Errorf("transcript id = %q", stored.TranscriptID)
			}
			return
		}
		if stored.Stage == registry.StageFailed {
			t.Fatalf("video failed: %s", stored.LastError)
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("video did not reach transcribed before the deadline")
}

func TestManagerStartRejectsMissingHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(), StepSet{}, notifications.NewNop())

	if err := m.Start(context.Background()); err == nil {
		m.Stop()
		t.Fatal("expected error for missing handlers")
	}
}

func TestExecuteWithTimeoutClassifiesDeadline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.ResolveTimeout = 1
	store := testsupport.MustOpenStore(t, cfg)

	handler := &fakeHandler{execFn: func(ctx context.Context, _ *registry.Video) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	m := NewManagerWithNotifier(cfg, store, logging.NewNop(),
		StepSet{Resolver: handler, Fetcher: &fakeHandler{}, Transcriber: &fakeHandler{}},
		notifications.NewNop())

	video := &registry.Video{ID: "house:slow", Source: registry.SourceHouse}
	err := m.executeWithTimeout(context.Background(), resolveStep(handler), video)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Errorf("expected timeout classification, got %v", err)
	}
	if services.IsPermanent(err) {
		t.Errorf("timeouts should be retryable, got %v", err)
	}
}
