package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"MailTracker/internal/app"
	"MailTracker/internal/config"
	"MailTracker/internal/logging"
)

func main() {
	var (
		configPath  = pflag.String("config", "", "path to the YAML config (default $MAILTRACKER_CONFIG)")
		mode        = pflag.String("mode", "run", "run (one batch), sweep (one stale sweep) or serve (scheduled)")
		trackerKind = pflag.String("tracker", "", "tracker kind: application or proposal")
	)
	pflag.Parse()

	cfg := config.Load(*configPath)
	if *trackerKind != "" {
		cfg.Tracker.Kind = *trackerKind
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := run(ctx, application, *mode); err != nil {
		logger.Error("application stopped", "mode", *mode, "error", err)
		application.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.Application, mode string) error {
	switch mode {
	case "run":
		_, err := application.Run(ctx)
		return err
	case "sweep":
		_, err := application.Sweep(ctx)
		return err
	case "serve":
		return application.Serve(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
