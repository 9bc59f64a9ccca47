// Command wavedaqd runs the acquisition daemon in the foreground.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"wavedaq/internal/config"
	"wavedaq/internal/daemon"
	"wavedaq/internal/ipc"
	"wavedaq/internal/logging"
	"wavedaq/internal/store"
	"wavedaq/internal/webapi"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configPath, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		os.Exit(1)
	}

	d, err := daemon.New(cfg, st, configPath, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	socketPath := filepath.Join(cfg.Paths.LogDir, "wavedaqd.sock")
	ipcServer, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	api, err := webapi.New(webapi.Config{
		Bind:         cfg.Paths.APIBind,
		PushInterval: time.Duration(cfg.LiveView.PushIntervalMillis) * time.Millisecond,
	}, d, logger)
	if err != nil {
		logger.Error("create api server", logging.Error(err))
		os.Exit(1)
	}
	if api != nil {
		if err := api.Start(ctx); err != nil {
			logger.Error("start api server", logging.Error(err))
			os.Exit(1)
		}
		defer api.Stop()
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("wavedaqd shutting down")
}
