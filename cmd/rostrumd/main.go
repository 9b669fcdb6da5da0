package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"rostrum/internal/config"
	"rostrum/internal/daemon"
	"rostrum/internal/daemonctl"
	"rostrum/internal/discovery"
	"rostrum/internal/fetch"
	"rostrum/internal/ipc"
	"rostrum/internal/logging"
	"rostrum/internal/notifications"
	"rostrum/internal/registry"
	"rostrum/internal/resolve"
	"rostrum/internal/transcribe"
	"rostrum/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := registry.Open(cfg)
	if err != nil {
		logger.Error("open registry", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	steps := workflow.StepSet{
		Resolver:    resolve.NewStep(cfg, logger),
		Fetcher:     fetch.NewStep(cfg, logger),
		Transcriber: transcribe.NewStep(cfg, store, logger),
	}
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, steps, notifications.NewService(cfg))
	manager.SetDiscoverer(discovery.NewCoordinator(cfg, store, logger))

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	pidPath := daemonctl.PIDFilePath(cfg)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		logger.Warn("write pid file", logging.String("path", pidPath), logging.Error(err))
	} else {
		defer os.Remove(pidPath)
	}

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("rostrumd shutting down")
}
