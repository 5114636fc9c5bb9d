package app

import (
	"context"
	"strings"
	"testing"

	"MailTracker/internal/config"
	"MailTracker/internal/infrastructure/llm"
	"MailTracker/internal/infrastructure/storage"
	"MailTracker/internal/logging"
)

func testConfig() config.Config {
	cfg := config.Load("/nonexistent/mailtracker.yaml")
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}
	cfg.Gmail.AccessToken = ""
	cfg.LLM.APIKey = ""
	return cfg
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewRequiresGmailToken(t *testing.T) {
	cfg := testConfig()
	_, err := New(context.Background(), cfg, logging.New("error", "text"))
	if err == nil || !strings.Contains(err.Error(), "gmail access token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNewRejectsUnknownTracker(t *testing.T) {
	cfg := testConfig()
	cfg.Tracker.Kind = "invoice"
	if _, err := New(context.Background(), cfg, logging.New("error", "text")); err == nil {
		t.Fatalf("expected unknown tracker error")
	}
}

func TestBuildReadsCredentialsFromSettings(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	settings := storage.NewSettingsStore(db)
	if err := settings.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := settings.Set(ctx, SettingGmailToken, "stored-token"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := testConfig()
	cfg.Tracker.Kind = "proposal"
	app, err := buildForTest(ctx, cfg, db)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if app.pipeline == nil || app.sweeper == nil || app.scheduler == nil {
		t.Fatalf("application not fully wired")
	}
}

func TestPrimaryExtractorHonoursSettings(t *testing.T) {
	ctx := context.Background()
	settings := storage.NewSettingsStore(openDB(t))
	if err := settings.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := logging.New("error", "text")
	cfg := config.LLMConfig{Endpoint: "http://llm", Model: "m"}

	primary, err := primaryExtractor(ctx, cfg, settings, logger)
	if err != nil || primary != nil {
		t.Fatalf("expected no extractor without key, got %v err=%v", primary, err)
	}

	if err := settings.Set(ctx, SettingLLMAPIKey, "k"); err != nil {
		t.Fatalf("set key: %v", err)
	}
	primary, err = primaryExtractor(ctx, cfg, settings, logger)
	if err != nil {
		t.Fatalf("primaryExtractor: %v", err)
	}
	if _, ok := primary.(*llm.ChatGPTClient); !ok {
		t.Fatalf("expected chat client, got %T", primary)
	}

	if err := settings.Set(ctx, SettingAIExtraction, "false"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	primary, err = primaryExtractor(ctx, cfg, settings, logger)
	if err != nil || primary != nil {
		t.Fatalf("expected AI extraction disabled, got %v err=%v", primary, err)
	}
}

func buildForTest(ctx context.Context, cfg config.Config, db *storage.DB) (*Application, error) {
	profile, err := trackerProfile(cfg)
	if err != nil {
		return nil, err
	}
	return build(ctx, cfg, db, profile, logging.New("error", "text"))
}
