package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	for _, f := range cfg.Sources.Feeds {
		if f.StockCode == "" {
			t.Errorf("feed %q has no stock_code", f.Name)
		}
	}

	if cfg.Classifier.Provider != "huggingface" {
		t.Errorf("expected provider 'huggingface', got %q", cfg.Classifier.Provider)
	}
	if cfg.Classifier.Models["fls"] != "yiyanghkust/finbert-fls" {
		t.Errorf("expected fls model, got %q", cfg.Classifier.Models["fls"])
	}
	if cfg.Server.Port != 5002 {
		t.Errorf("expected port 5002, got %d", cfg.Server.Port)
	}
	if cfg.Schedule.Timezone != "Asia/Seoul" {
		t.Errorf("expected Asia/Seoul, got %q", cfg.Schedule.Timezone)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
classifier:
  provider: sidecar
  sidecar_url: http://models:9000
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Classifier.Provider != "sidecar" {
		t.Errorf("expected provider 'sidecar', got %q", cfg.Classifier.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Classifier.APIKeyEnv != "HF_API_TOKEN" {
		t.Errorf("expected default api_key_env, got %q", cfg.Classifier.APIKeyEnv)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("expected default 4 workers, got %d", cfg.Analysis.Workers)
	}
	if cfg.Disclosure.BaseURL != "https://opendart.fss.or.kr/api" {
		t.Errorf("expected default DART URL, got %q", cfg.Disclosure.BaseURL)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"provider": "classifier:\n  provider: openai\n",
		"workers":  "analysis:\n  workers: 0\n",
		"feed":     "sources:\n  feeds:\n    - url: https://x/feed\n",
		"yaml":     "server: [",
	}
	for name, data := range cases {
		if _, err := parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}

	path := filepath.Join(t.TempDir(), "c.yaml")
	os.WriteFile(path, []byte("{}"), 0o644)
	got, err := ResolveConfigPath(path)
	if err != nil || got != path {
		t.Errorf("expected %q, got %q (%v)", path, got, err)
	}
}

func TestOverlayFromEnvironment(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("ESGLENS_SERVER_PORT", "9100")
	t.Setenv("ESGLENS_LOGGING_LEVEL", "DEBUG")
	t.Setenv("ESGLENS_ANALYSIS_WORKERS", "8")
	t.Setenv("ESGLENS_NOTIFICATIONS_TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("ESGLENS_SCHEDULE_ENABLED", "true")

	Overlay(cfg, NewViper())

	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Analysis.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Analysis.Workers)
	}
	if cfg.Notifications.Telegram.ChatID != -100123 {
		t.Errorf("expected chat id override, got %d", cfg.Notifications.Telegram.ChatID)
	}
	if !cfg.Schedule.Enabled {
		t.Error("expected schedule to be enabled")
	}
	// Untouched keys keep file values.
	if cfg.Classifier.Provider != "huggingface" {
		t.Errorf("expected provider unchanged, got %q", cfg.Classifier.Provider)
	}
}

func TestOverlayExplicitSet(t *testing.T) {
	cfg := &Config{}
	v := NewViper()
	v.Set("output.data_dir", "/srv/esglens")
	Overlay(cfg, v)
	if cfg.GetDataDir() != "/srv/esglens" {
		t.Errorf("expected overlay data dir, got %q", cfg.GetDataDir())
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestSecret(t *testing.T) {
	t.Setenv("ESGLENS_TEST_SECRET", "s3cret")
	if Secret("ESGLENS_TEST_SECRET") != "s3cret" {
		t.Error("expected secret from environment")
	}
	if Secret("") != "" {
		t.Error("expected empty secret for empty name")
	}
}
