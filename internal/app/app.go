package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"MailTracker/internal/config"
	"MailTracker/internal/extraction"
	"MailTracker/internal/infrastructure/gmail"
	"MailTracker/internal/infrastructure/llm"
	"MailTracker/internal/infrastructure/scheduler"
	"MailTracker/internal/infrastructure/storage"
	"MailTracker/internal/infrastructure/telegram"
	"MailTracker/internal/logging"
	"MailTracker/internal/ports"
	"MailTracker/internal/reconcile"
	"MailTracker/internal/tracker"
	"MailTracker/internal/usecase"
)

// Keys in the settings store consulted at startup.
const (
	SettingLLMAPIKey    = "llm.api_key"
	SettingGmailToken   = "gmail.access_token"
	SettingAIExtraction = "extraction.ai_enabled"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	db        *storage.DB
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	sweeper   *usecase.Sweeper
	scheduler *usecase.Scheduler
}

// New opens storage, resolves credentials and builds the use cases for the
// configured tracker.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := trackerProfile(cfg)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app, err := build(ctx, cfg, db, profile, baseLogger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func trackerProfile(cfg config.Config) (*tracker.Profile, error) {
	profile, err := tracker.DefaultRegistry().Configure(cfg.Tracker)
	if err != nil {
		return nil, fmt.Errorf("configure tracker: %w", err)
	}
	return &profile, nil
}

func build(ctx context.Context, cfg config.Config, db *storage.DB, profile *tracker.Profile, baseLogger *slog.Logger) (*Application, error) {
	settings := storage.NewSettingsStore(db)
	if err := settings.Migrate(ctx); err != nil {
		return nil, err
	}
	table, err := storage.NewTrackerTable(db, cfg.Tracker.TableName(), cfg.Tracker.Columns)
	if err != nil {
		return nil, err
	}
	if err := table.Migrate(ctx); err != nil {
		return nil, err
	}

	gmailCfg := cfg.Gmail
	if gmailCfg.AccessToken == "" {
		gmailCfg.AccessToken, err = setting(ctx, settings, SettingGmailToken)
		if err != nil {
			return nil, err
		}
	}
	if gmailCfg.AccessToken == "" {
		return nil, fmt.Errorf("gmail access token is not configured (config, GMAIL_ACCESS_TOKEN or setting %s)", SettingGmailToken)
	}
	mailbox := gmail.NewClient(gmailCfg, baseLogger.With("component", "gmail"))

	primary, err := primaryExtractor(ctx, cfg.LLM, settings, baseLogger)
	if err != nil {
		return nil, err
	}

	extractor := extraction.NewPipeline(primary, extraction.Config{
		PrimaryField:   profile.PrimaryField,
		SecondaryField: profile.SecondaryField,
		Vocabulary:     profile,
		Heuristics:     &profile.Heuristics,
		BodyLimit:      cfg.LLM.BodyLimit,
		MinConfidence:  cfg.LLM.MinConfidence,
	}, baseLogger.With("component", "extraction"))

	var notifier ports.Notifier
	if cfg.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Telegram)
	}

	loc := cfg.Scheduler.Location()
	now := func() time.Time { return time.Now().In(loc) }

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Mailbox:   mailbox,
		Table:     table,
		Settings:  settings,
		Extractor: extractor,
		Policy:    reconcile.NewPolicy(profile),
		Notifier:  notifier,
		Tracker:   profile.Name,
		Labels: usecase.Labels{
			ToProcess:    cfg.Labels.ToProcess,
			Processed:    cfg.Labels.Processed,
			ManualReview: cfg.Labels.ManualReview,
		},
		BatchSize: cfg.Batch.Size,
		Deadline:  cfg.Batch.Deadline,
		Pause:     cfg.Batch.Pause,
		Now:       now,
		Logger:    baseLogger.With("component", "pipeline", "tracker", profile.Name),
	})

	sweeper := usecase.NewSweeper(table, settings, profile, now, baseLogger.With("component", "sweeper", "tracker", profile.Name))

	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:     scheduler.NewIntervalScheduler(cfg.Scheduler.RunInterval),
		Pipeline:   pipeline,
		Sweeper:    sweeper,
		Settings:   settings,
		Threshold:  cfg.Sweep.Threshold,
		SweepEvery: cfg.Sweep.Interval,
		Logger:     baseLogger.With("component", "scheduler"),
	})

	return &Application{
		cfg:       cfg,
		db:        db,
		logger:    baseLogger,
		pipeline:  pipeline,
		sweeper:   sweeper,
		scheduler: sched,
	}, nil
}

// primaryExtractor returns nil when AI extraction is switched off or has no
// key; the deterministic fallback then handles every message.
func primaryExtractor(ctx context.Context, cfg config.LLMConfig, settings ports.Settings, logger *slog.Logger) (ports.Extractor, error) {
	raw, err := setting(ctx, settings, SettingAIExtraction)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			logger.Warn("ignoring malformed setting", "key", SettingAIExtraction, "value", raw)
		} else if !enabled {
			logger.Info("AI extraction disabled by setting")
			return nil, nil
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey, err = setting(ctx, settings, SettingLLMAPIKey)
		if err != nil {
			return nil, err
		}
	}
	if cfg.APIKey == "" {
		logger.Warn("no LLM api key, using fallback extraction only")
		return nil, nil
	}
	return llm.NewChatGPTClient(cfg), nil
}

func setting(ctx context.Context, settings ports.Settings, key string) (string, error) {
	value, _, err := settings.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// Run processes one batch.
func (a *Application) Run(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Run(ctx)
}

// Sweep runs one stale sweep with the configured threshold.
func (a *Application) Sweep(ctx context.Context) (int, error) {
	return a.sweeper.Sweep(ctx, a.cfg.Sweep.Threshold)
}

// Serve runs batches on the configured interval until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.RunInterval.String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Batch.Deadline+time.Minute)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
