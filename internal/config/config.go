package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "MAILTRACKER_CONFIG"
	trackerKindEnv   = "MAILTRACKER_TRACKER"
	logLevelEnv      = "LOG_LEVEL"
	logFormatEnv     = "LOG_FORMAT"
	databaseDSNEnv   = "DATABASE_DSN"
	databaseDrvEnv   = "DATABASE_DRIVER"
	llmAPIKeyEnv     = "LLM_API_KEY"
	llmModelEnv      = "LLM_MODEL"
	gmailTokenEnv    = "GMAIL_ACCESS_TOKEN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	defaultStaleAge  = 8 * 7 * 24 * time.Hour
	defaultBatchSize = 20
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	LLM       LLMConfig       `yaml:"llm"`
	Gmail     GmailConfig     `yaml:"gmail"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Labels    LabelConfig     `yaml:"labels"`
	Batch     BatchConfig     `yaml:"batch"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Tracker   TrackerConfig   `yaml:"tracker"`
}

// LoggingConfig selects the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes where the tracker table lives.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines how often serve mode runs a batch.
type SchedulerConfig struct {
	RunInterval time.Duration  `yaml:"runInterval"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LLMConfig defines how to contact the OpenAI-compatible extractor.
type LLMConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"apiKey"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	BaseDelay     time.Duration `yaml:"baseDelay"`
	MaxDelay      time.Duration `yaml:"maxDelay"`
	Timeout       time.Duration `yaml:"timeout"`
	BodyLimit     int           `yaml:"bodyLimit"`
	MinConfidence float64       `yaml:"minConfidence"`
}

// GmailConfig wires the mailbox adapter.
type GmailConfig struct {
	Endpoint    string `yaml:"endpoint"`
	User        string `yaml:"user"`
	AccessToken string `yaml:"accessToken"`
}

// TelegramConfig enables run digests; both token and chat are required.
type TelegramConfig struct {
	Endpoint string `yaml:"endpoint"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatID"`
}

// Enabled reports whether digests should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LabelConfig names the markers driving the thread lifecycle.
type LabelConfig struct {
	ToProcess    string `yaml:"toProcess"`
	Processed    string `yaml:"processed"`
	ManualReview string `yaml:"manualReview"`
}

// BatchConfig bounds a single orchestrator run.
type BatchConfig struct {
	Size     int           `yaml:"size"`
	Deadline time.Duration `yaml:"deadline"`
	Pause    time.Duration `yaml:"pause"`
}

// SweepConfig controls the stale sweeper.
type SweepConfig struct {
	Threshold time.Duration `yaml:"threshold"`
	Interval  time.Duration `yaml:"interval"`
}

// TrackerConfig selects a built-in tracker and overrides parts of it.
type TrackerConfig struct {
	Kind             string            `yaml:"kind"`
	Table            string            `yaml:"table"`
	DefaultStatus    string            `yaml:"defaultStatus"`
	StaleStatus      string            `yaml:"staleStatus"`
	Statuses         []StatusConfig    `yaml:"statuses"`
	OverrideStatuses []string          `yaml:"overrideStatuses"`
	TerminalStatuses []string          `yaml:"terminalStatuses"`
	Columns          map[string]string `yaml:"columns"`
}

// StatusConfig is one vocabulary entry.
type StatusConfig struct {
	Name string `yaml:"name"`
	Rank int    `yaml:"rank"`
}

// TableName falls back to the pluralised tracker kind.
func (t TrackerConfig) TableName() string {
	if t.Table != "" {
		return t.Table
	}
	return t.Kind + "s"
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An empty path falls back to MAILTRACKER_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports missing identifiers that make a run impossible.
func (c Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	if c.Tracker.Kind == "" {
		problems = append(problems, "tracker.kind is required")
	}
	if c.Labels.ToProcess == "" || c.Labels.Processed == "" || c.Labels.ManualReview == "" {
		problems = append(problems, "labels.toProcess, labels.processed and labels.manualReview are required")
	} else if c.Labels.ToProcess == c.Labels.Processed || c.Labels.ToProcess == c.Labels.ManualReview {
		problems = append(problems, "labels.toProcess must differ from the outcome labels")
	}
	if c.Batch.Size <= 0 {
		problems = append(problems, "batch.size must be positive")
	}
	if c.Batch.Deadline <= 0 {
		problems = append(problems, "batch.deadline must be positive")
	}
	if c.Sweep.Threshold <= 0 {
		problems = append(problems, "sweep.threshold must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDrvEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(gmailTokenEnv); v != "" {
		c.Gmail.AccessToken = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(trackerKindEnv); v != "" {
		c.Tracker.Kind = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.RunInterval > 0 {
		base.Scheduler.RunInterval = override.Scheduler.RunInterval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.MaxAttempts > 0 {
		base.LLM.MaxAttempts = override.LLM.MaxAttempts
	}
	if override.LLM.BaseDelay > 0 {
		base.LLM.BaseDelay = override.LLM.BaseDelay
	}
	if override.LLM.MaxDelay > 0 {
		base.LLM.MaxDelay = override.LLM.MaxDelay
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.BodyLimit > 0 {
		base.LLM.BodyLimit = override.LLM.BodyLimit
	}
	if override.LLM.MinConfidence > 0 {
		base.LLM.MinConfidence = override.LLM.MinConfidence
	}

	if override.Gmail.Endpoint != "" {
		base.Gmail.Endpoint = override.Gmail.Endpoint
	}
	if override.Gmail.User != "" {
		base.Gmail.User = override.Gmail.User
	}
	if override.Gmail.AccessToken != "" {
		base.Gmail.AccessToken = override.Gmail.AccessToken
	}

	if override.Telegram.Endpoint != "" {
		base.Telegram.Endpoint = override.Telegram.Endpoint
	}
	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.Labels.ToProcess != "" {
		base.Labels.ToProcess = override.Labels.ToProcess
	}
	if override.Labels.Processed != "" {
		base.Labels.Processed = override.Labels.Processed
	}
	if override.Labels.ManualReview != "" {
		base.Labels.ManualReview = override.Labels.ManualReview
	}

	if override.Batch.Size > 0 {
		base.Batch.Size = override.Batch.Size
	}
	if override.Batch.Deadline > 0 {
		base.Batch.Deadline = override.Batch.Deadline
	}
	if override.Batch.Pause > 0 {
		base.Batch.Pause = override.Batch.Pause
	}

	if override.Sweep.Threshold > 0 {
		base.Sweep.Threshold = override.Sweep.Threshold
	}
	if override.Sweep.Interval > 0 {
		base.Sweep.Interval = override.Sweep.Interval
	}

	if override.Tracker.Kind != "" {
		base.Tracker.Kind = override.Tracker.Kind
	}
	if override.Tracker.Table != "" {
		base.Tracker.Table = override.Tracker.Table
	}
	if override.Tracker.DefaultStatus != "" {
		base.Tracker.DefaultStatus = override.Tracker.DefaultStatus
	}
	if override.Tracker.StaleStatus != "" {
		base.Tracker.StaleStatus = override.Tracker.StaleStatus
	}
	if len(override.Tracker.Statuses) > 0 {
		base.Tracker.Statuses = override.Tracker.Statuses
	}
	if len(override.Tracker.OverrideStatuses) > 0 {
		base.Tracker.OverrideStatuses = override.Tracker.OverrideStatuses
	}
	if len(override.Tracker.TerminalStatuses) > 0 {
		base.Tracker.TerminalStatuses = override.Tracker.TerminalStatuses
	}
	if len(override.Tracker.Columns) > 0 {
		base.Tracker.Columns = override.Tracker.Columns
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:mailtracker.db?_pragma=busy_timeout(5000)"},
		Scheduler: SchedulerConfig{RunInterval: 15 * time.Minute, Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o-mini",
			MaxAttempts:   4,
			BaseDelay:     time.Second,
			MaxDelay:      30 * time.Second,
			Timeout:       30 * time.Second,
			BodyLimit:     4000,
			MinConfidence: 0.5,
		},
		Gmail:    GmailConfig{Endpoint: "https://gmail.googleapis.com", User: "me"},
		Telegram: TelegramConfig{Endpoint: "https://api.telegram.org"},
		Labels: LabelConfig{
			ToProcess:    "Tracker/To Process",
			Processed:    "Tracker/Processed",
			ManualReview: "Tracker/Manual Review",
		},
		Batch:   BatchConfig{Size: defaultBatchSize, Deadline: 5 * time.Minute, Pause: 500 * time.Millisecond},
		Sweep:   SweepConfig{Threshold: defaultStaleAge, Interval: 24 * time.Hour},
		Tracker: TrackerConfig{Kind: "application"},
	}
}
