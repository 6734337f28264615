package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.View.Range != "1M" || cfg.View.MaxPoints != 3000 {
		t.Fatalf("view defaults = %+v", cfg.View)
	}
	if cfg.Scheduler.RefreshInterval != time.Hour || cfg.Scheduler.LabelInterval != 10*time.Second || cfg.Scheduler.Align {
		t.Fatalf("scheduler defaults = %+v", cfg.Scheduler)
	}
	if cfg.Alerting.Cooldown != 24*time.Hour {
		t.Fatalf("cooldown = %s", cfg.Alerting.Cooldown)
	}
	if len(cfg.View.Metrics) != 3 {
		t.Fatalf("metrics = %v", cfg.View.Metrics)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gsrwatch.yaml")
	body := []byte("view:\n  range: 6M\n  metrics: gsr,silver\nstorage:\n  backend: memory\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GSRWATCH_SOURCE_LATEST_URL", "https://example.test/api/latest")
	t.Setenv("GSRWATCH_SCHEDULER_ALIGN", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.View.Range != "6M" {
		t.Fatalf("range = %s", cfg.View.Range)
	}
	if len(cfg.View.Metrics) != 2 || cfg.View.Metrics[1] != "silver" {
		t.Fatalf("metrics = %v", cfg.View.Metrics)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("backend = %s", cfg.Storage.Backend)
	}
	if cfg.Source.LatestURL != "https://example.test/api/latest" {
		t.Fatalf("latest url = %s", cfg.Source.LatestURL)
	}
	if !cfg.Scheduler.Align {
		t.Fatal("scheduler.align from env was not applied")
	}
}

func TestValidateTelegram(t *testing.T) {
	cfg := &Config{
		Export:    ExportConfig{MaxDataPoints: 1},
		View:      ViewConfig{MaxPoints: 10, Width: 1, Height: 1, Metrics: []string{"gsr"}},
		Scheduler: SchedulerConfig{RefreshInterval: time.Minute, LabelInterval: time.Second},
		Alerting:  AlertingConfig{Cooldown: time.Hour, Telegram: TelegramConfig{Enabled: true}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram without token should fail validation")
	}
	cfg.Alerting.Telegram.BotToken = "t"
	cfg.Alerting.Telegram.ChatID = "c"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.ResolveMaxPoints(0) != 1 || cfg.ResolveMaxPoints(7) != 7 {
		t.Fatal("ResolveMaxPoints")
	}
}
