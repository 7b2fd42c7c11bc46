package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aistudio/internal/config"
	"aistudio/internal/counter"
	"aistudio/internal/dispatch"
	"aistudio/internal/enhance"
	"aistudio/internal/openai"
	"aistudio/internal/server"
	"aistudio/internal/session"
	"aistudio/internal/telemetry"
	"aistudio/internal/video"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aistudio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.CounterDBPath, "Path to the usage counter database")
	logDir := flag.String("logs", cfg.LogDir, "Directory for log and telemetry files")
	debug := flag.Bool("debug", cfg.Debug, "Enable debug logging")
	flag.Parse()
	cfg.Addr = *addr
	cfg.CounterDBPath = *dbPath
	cfg.LogDir = *logDir
	cfg.Debug = *debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer cleanup()

	actions := telemetry.NewActionLogger(logger, meter)

	counters, err := counter.Open(cfg.CounterDBPath)
	if err != nil {
		return fmt.Errorf("open counter store: %w", err)
	}
	defer counters.Close()

	client := openai.NewClient(cfg.OpenAIBaseURL, cfg.RequestTimeout)

	dispatcher, err := dispatch.New(client, client, counters, actions, tracer)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}
	if cfg.GoogleKey != "" {
		vc := video.NewClient(cfg.VideoBaseURL, config.VideoModel, config.VideoPollInterval, config.VideoMaxPolls)
		dispatcher.WithVideo(vc, cfg.GoogleKey)
		logger.Info("video generation enabled", "model", config.VideoModel)
	} else {
		logger.Info("video generation disabled, GOOGLE_API_KEY not set")
	}

	sessions := session.NewManager(cfg.SessionIdleTimeout, logger)
	enhancer := enhance.NewService(client, counters, actions)

	srv := server.New(cfg, logger, actions, sessions, dispatcher, enhancer, counters, client)
	srv.StartSweeper(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}
