package daemon_test

import (
	"context"
	"testing"

	"rostrum/internal/daemon"
	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
	"rostrum/internal/stage"
	"rostrum/internal/testsupport"
	"rostrum/internal/workflow"
)

type idleHandler struct{}

func (idleHandler) Prepare(context.Context, *registry.Video) error { return nil }
func (idleHandler) Execute(context.Context, *registry.Video) error { return nil }
func (idleHandler) HealthCheck(context.Context) stage.Health       { return stage.Healthy("idle") }

func newDaemon(t *testing.T) (*daemon.Daemon, *registry.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(),
		workflow.StepSet{Resolver: idleHandler{}, Fetcher: idleHandler{}, Transcriber: idleHandler{}},
		notifications.NewNop())
	d, err := daemon.New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Error("status should report running")
	}
	if status.LockFilePath == "" || status.RegistryDBPath == "" {
		t.Errorf("status missing paths: %+v", status)
	}
	if status.PID <= 0 {
		t.Errorf("status PID = %d", status.PID)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Error("status should report stopped after Stop")
	}

	// The lock must be reusable after a clean stop.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	d.Stop()
}

func TestDaemonRegistryOperations(t *testing.T) {
	d, store := newDaemon(t)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, registry.SourceHouse, "HOUSE-A", "Committee A")

	videos, err := d.ListVideos(ctx, nil)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("listed %d videos, want 1", len(videos))
	}

	got, err := d.GetVideo(ctx, video.ID)
	if err != nil || got == nil {
		t.Fatalf("GetVideo: video=%v err=%v", got, err)
	}

	health, err := d.RegistryHealth(ctx)
	if err != nil {
		t.Fatalf("RegistryHealth: %v", err)
	}
	if health.Total != 1 || health.Ready != 1 {
		t.Errorf("health = %+v, want one ready video", health)
	}

	dbHealth, err := d.DatabaseHealth(ctx)
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.IntegrityCheck {
		t.Errorf("database health = %+v", dbHealth)
	}
}

func TestDaemonRetryFailed(t *testing.T) {
	d, store := newDaemon(t)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, registry.SourceSenate, "abc123", "Senate Session")
	claimed, err := store.ClaimNext(ctx, registry.StageDiscovered, "w1")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: video=%v err=%v", claimed, err)
	}
	if err := store.FailPermanently(ctx, claimed, "boom"); err != nil {
		t.Fatalf("FailPermanently: %v", err)
	}

	updated, err := d.RetryFailed(ctx, nil)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 1 {
		t.Errorf("retried %d videos, want 1", updated)
	}

	stored, _ := store.GetByID(ctx, video.ID)
	if stored.Stage != registry.StageDiscovered {
		t.Errorf("stage after retry = %s, want discovered", stored.Stage)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newDaemon(t)
	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Error("notification reported sent without a configured topic")
	}
	if message == "" {
		t.Error("expected explanatory message")
	}
}
