package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"x-scene/backend/internal/config"
	"x-scene/backend/internal/game"
	"x-scene/backend/internal/telemetry"
	"x-scene/backend/internal/transport/ws"
)

func main() {
	var (
		configPath   = flag.String("config", "config.toml", "path to TOML config")
		scenePath    = flag.String("scene", "", "scene description (file or http url), overrides config")
		addr         = flag.String("addr", "", "listen address, overrides config")
		serveOnError = flag.Bool("serve-on-error", false, "keep serving ws after a fatal load error")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[Player] %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Fatalf("[Player] %v", err)
	}
	if *scenePath != "" {
		cfg.Runtime.Scene = *scenePath
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	config.Set(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatalf("[Player] tracing: %v", err)
	}
	defer telemetry.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	collector, err := telemetry.NewFrameCollector(nil)
	if err != nil {
		logger.Fatalf("[Player] metrics: %v", err)
	}

	hub := ws.NewHub(collector, logger)
	rt := game.NewRuntime(game.Options{
		Config:    cfg,
		Collector: collector,
		Publisher: hub,
		Logger:    logger,
	})

	wsServer := ws.NewWSServer(hub, rt.Queue, rt, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWS)
	mux.Handle(cfg.Server.MetricsPath, collector.Handler())
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("[Player] listening on %s (ws: /ws, metrics: %s)", cfg.Server.Addr, cfg.Server.MetricsPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	loadErr := rt.Load(ctx)
	switch {
	case loadErr == nil:
		if err := rt.Start(); err != nil {
			logger.Printf("[Player] start: %v", err)
			loadErr = err
		}
	default:
		logger.Printf("[Player] load failed: %v", loadErr)
	}

	if loadErr == nil || *serveOnError {
		select {
		case <-ctx.Done():
			logger.Printf("[Player] shutting down")
		case err, ok := <-serveErr:
			if ok {
				logger.Printf("[Player] http server: %v", err)
				loadErr = err
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsServer.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[Player] http shutdown: %v", err)
	}
	rt.Close()

	if loadErr != nil {
		stop()
		telemetry.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)
		os.Exit(1)
	}
}
