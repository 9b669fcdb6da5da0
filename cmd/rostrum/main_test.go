package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"rostrum/internal/config"
	"rostrum/internal/daemon"
	"rostrum/internal/ipc"
	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
	"rostrum/internal/stage"
	"rostrum/internal/testsupport"
	"rostrum/internal/workflow"
)

type stubStep struct{ name string }

func (s stubStep) Prepare(context.Context, *registry.Video) error { return nil }
func (s stubStep) Execute(context.Context, *registry.Video) error { return nil }
func (s stubStep) HealthCheck(context.Context) stage.Health       { return stage.Healthy(s.name) }

type cliTestEnv struct {
	cfg        *config.Config
	store      *registry.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfg := &cfgVal

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	steps := workflow.StepSet{
		Resolver:    stubStep{name: "resolve"},
		Fetcher:     stubStep{name: "fetch"},
		Transcriber: stubStep{name: "transcribe"},
	}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, steps, notifications.NewNop())

	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(base, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alpha := testsupport.NewVideo(t, env.store, registry.SourceHouse, "hearing-appropriations", "Appropriations Committee")
	beta := testsupport.NewVideo(t, env.store, registry.SourceSenate, "session-2025-02-20", "Senate Regular Session")

	claimed, err := env.store.ClaimNext(ctx, registry.StageDiscovered, "cli-test")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: video=%v err=%v", claimed, err)
	}
	if err := env.store.FailPermanently(ctx, claimed, "archive page removed"); err != nil {
		t.Fatalf("FailPermanently: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, "Discovered") || !strings.Contains(out, "Failed") {
		t.Fatalf("unexpected queue status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "Appropriations Committee") || !strings.Contains(out, "Senate Regular Session") {
		t.Fatalf("queue list missing videos: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--stage", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --stage failed: %v", err)
	}
	if !strings.Contains(out, claimed.Title) {
		t.Fatalf("filtered list missing failed video: %q", out)
	}
	var other string
	if claimed.ID == alpha.ID {
		other = beta.Title
	} else {
		other = alpha.Title
	}
	if strings.Contains(out, other) {
		t.Fatalf("filtered list leaked non-failed video: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "show", beta.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	if !strings.Contains(out, beta.ID) || !strings.Contains(out, beta.Title) {
		t.Fatalf("unexpected show output: %q", out)
	}

	if _, _, err := runCLI(t, []string{"queue", "show", "no-such-id"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unknown video id")
	}

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	if !strings.Contains(out, "Requeued 1 videos") {
		t.Fatalf("unexpected retry output: %q", out)
	}
	requeued, err := env.store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID after retry: %v", err)
	}
	if requeued.Stage != registry.StageDiscovered {
		t.Fatalf("expected requeued video at discovered, got %s", requeued.Stage)
	}

	out, _, err = runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if !strings.Contains(out, "registry.db") || !strings.Contains(out, "Integrity check: yes") {
		t.Fatalf("unexpected health output: %q", out)
	}
}

func TestCLISearchCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	video := testsupport.NewVideo(t, env.store, registry.SourceHouse, "judiciary-2025-02-20", "Judiciary Committee")
	transcript := &registry.Transcript{
		VideoID:  video.ID,
		Provider: "whisperx",
		Content:  "The committee heard testimony on the proposed broadband expansion grants.",
	}
	if err := env.store.AddTranscript(ctx, transcript); err != nil {
		t.Fatalf("AddTranscript: %v", err)
	}

	out, _, err := runCLI(t, []string{"search", "broadband"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "Judiciary Committee") || !strings.Contains(out, "1 matching transcripts") {
		t.Fatalf("unexpected search output: %q", out)
	}

	out, _, err = runCLI(t, []string{"search", "filibuster"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("search no-match: %v", err)
	}
	if !strings.Contains(out, "No transcripts matched") {
		t.Fatalf("expected no-match message, got %q", out)
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.NewVideo(t, env.store, registry.SourceSenate, "session-2025-03-01", "Senate Regular Session")

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "System Status") || !strings.Contains(out, "Queue Status") {
		t.Fatalf("missing status sections: %q", out)
	}
	if !strings.Contains(out, "Discovered") {
		t.Fatalf("expected discovered stage in queue table: %q", out)
	}
}

func TestCLILogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := filepath.Join(env.cfg.Paths.LogDir, "rostrum.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --lines: %v", err)
	}
	if strings.Contains(out, "first") || !strings.Contains(out, "second") || !strings.Contains(out, "third") {
		t.Fatalf("unexpected logs output: %q", out)
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected explanation for unconfigured notifications, got %q", out)
	}
}

func TestCLIConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	base := t.TempDir()

	target := filepath.Join(base, "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.socketPath, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") {
		t.Fatalf("expected TOML output from config show: %q", out)
	}
}

func TestCLIDiscoverWithoutSources(t *testing.T) {
	env := setupCLITestEnv(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No discoverer is registered in the stub environment, so the
		// daemon should surface an error instead of hanging.
		_, _, err := runCLI(t, []string{"discover"}, env.socketPath, env.configPath)
		if err == nil {
			t.Error("expected discover to fail without a discoverer")
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("discover did not return")
	}
}
