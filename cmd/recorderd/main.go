package main

import (
	"context"
	"flag"
	"os"
	"time"

	"ghostreplay/internal/bootstrap"
	"ghostreplay/internal/config"
	"ghostreplay/internal/logging"
	"ghostreplay/internal/shutdown"
)

func main() {
	envLogger := logging.New("recorderd", "info", "text")
	config.LoadEnv(envLogger)

	cfg := config.Load()

	addr := flag.String("addr", cfg.ReviewAddr, "review HTTP listen address")
	dir := flag.String("recordings", cfg.RecordingsDir, "directory for session files")
	noAuto := flag.Bool("no-auto", false, "disable automatic recording on game start")
	flag.Parse()

	cfg.ReviewAddr = *addr
	cfg.RecordingsDir = *dir
	if *noAuto {
		cfg.AutoRecord = false
	}

	log := logging.New("recorderd", cfg.LogLevel, cfg.LogFormat)

	stack, err := bootstrap.New(context.Background(), cfg, log, bootstrap.Listeners{})
	if err != nil {
		log.WithError(err).Error("Failed to initialize recorder")
		os.Exit(1)
	}

	ctx, release := shutdown.SetupSignalHandler(context.Background(), log, nil)
	defer release()

	stack.Start(ctx)
	log.WithFields(logging.Fields{
		"liveClient": cfg.LiveClientURL,
		"recordings": cfg.RecordingsDir,
		"autoRecord": cfg.AutoRecord,
	}).Info("Recorder started")

	serveErr := make(chan error, 1)
	go func() { serveErr <- stack.Serve(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("Review server stopped")
		}
	}

	ok := shutdown.Run(log, 15*time.Second, shutdown.Step{
		Name: "stack",
		Fn:   stack.Close,
	})
	if !ok {
		os.Exit(1)
	}
}
