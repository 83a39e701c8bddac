package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/ESGLens/internal/analysis"
	"github.com/TobiSchelling/ESGLens/internal/classify"
	"github.com/TobiSchelling/ESGLens/internal/clova"
	"github.com/TobiSchelling/ESGLens/internal/collect"
	"github.com/TobiSchelling/ESGLens/internal/config"
	"github.com/TobiSchelling/ESGLens/internal/database"
	"github.com/TobiSchelling/ESGLens/internal/disclosure"
	"github.com/TobiSchelling/ESGLens/internal/fetch"
	"github.com/TobiSchelling/ESGLens/internal/notify"
	"github.com/TobiSchelling/ESGLens/internal/pipeline"
	"github.com/TobiSchelling/ESGLens/internal/report"
	"github.com/TobiSchelling/ESGLens/internal/server"
)

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "esglens.db"))
}

func newClassifier() (classify.Classifier, error) {
	c := cfg.Classifier
	models := make(map[classify.Pipeline]string, len(c.Models))
	for name, model := range c.Models {
		models[classify.Pipeline(name)] = model
	}
	classifier := classify.CreateClassifier(classify.Options{
		Provider:       c.Provider,
		HuggingFaceURL: c.HuggingFaceURL,
		APIKeyEnv:      c.APIKeyEnv,
		SidecarURL:     c.SidecarURL,
		Models:         models,
		MaxInputChars:  c.MaxInputChars,
		TimeoutSeconds: c.TimeoutSeconds,
	}, slog.Default())
	if classifier == nil {
		return nil, fmt.Errorf("no classifier available: set %s or start the sidecar at %s", c.APIKeyEnv, c.SidecarURL)
	}
	return classifier, nil
}

// newService builds the analysis service. Models are resolved once here and
// shared by every request.
func newService(db *database.DB) (*analysis.Service, error) {
	classifier, err := newClassifier()
	if err != nil {
		return nil, err
	}
	analyzer := analysis.NewAnalyzer(classifier, db, cfg.Analysis.Workers, slog.Default())
	return analysis.NewService(db, analyzer, fetch.NewArticleAPI(0),
		cfg.ArticleAPI.URL, config.Secret(cfg.ArticleAPI.APIKeyEnv), slog.Default()), nil
}

func newCollector(db *database.DB) *collect.Collector {
	return collect.NewCollector(cfg, db, slog.Default())
}

func newDisclosure() *disclosure.Client {
	d := cfg.Disclosure
	return disclosure.NewClient(d.BaseURL, config.Secret(d.APIKeyEnv),
		time.Duration(d.TimeoutSeconds)*time.Second, slog.Default())
}

// newNotifier returns nil when alerts are disabled.
func newNotifier() (*notify.Notifier, error) {
	t := cfg.Notifications.Telegram
	if !t.Enabled {
		return nil, nil
	}
	return notify.NewTelegram(config.Secret(t.BotTokenEnv), t.ChatID, t.MinScore, slog.Default())
}

func newPipeline(db *database.DB, svc *analysis.Service) (*pipeline.Pipeline, error) {
	n, err := newNotifier()
	if err != nil {
		return nil, err
	}
	// A typed nil *Notifier must not reach the interface.
	var notifier pipeline.Notifier
	if n != nil {
		notifier = n
	}
	fetcher := fetch.NewContentFetcher(db, 15*time.Second, slog.Default())
	return pipeline.New(db, newCollector(db), fetcher, svc, notifier, slog.Default()), nil
}

// newServeComponents builds the API dependencies and, when the schedule is
// enabled, the pipeline. Both use the same analysis service.
func newServeComponents(db *database.DB) (server.Deps, *pipeline.Pipeline, error) {
	svc, err := newService(db)
	if err != nil {
		return server.Deps{}, nil, err
	}
	deps := newServerDeps(db, svc)
	if !cfg.Schedule.Enabled {
		return deps, nil, nil
	}
	pipe, err := newPipeline(db, svc)
	if err != nil {
		return server.Deps{}, nil, err
	}
	return deps, pipe, nil
}

func newServerDeps(db *database.DB, svc *analysis.Service) server.Deps {
	deps := server.Deps{
		Analysis:       svc,
		Companies:      db,
		Reports:        report.NewBuilder(db, 0),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         slog.Default(),
	}
	if d := newDisclosure(); d.IsConfigured() {
		deps.Financials = d
	} else {
		slog.Warn("DART API key not set; /financial_statements disabled", "env", cfg.Disclosure.APIKeyEnv)
	}

	a := cfg.Assistant
	executor := clova.NewExecutor(a.Host, a.SkillsetPath, config.Secret(a.APIKeyEnv), config.Secret(a.GatewayKeyEnv), 0, slog.Default())
	if executor.IsConfigured() {
		deps.Assistant = executor
	}
	return deps
}

func present(secret string) string {
	if secret == "" {
		return "not set"
	}
	return "set"
}

func scheduleSummary() string {
	if !cfg.Schedule.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%q (%s)", cfg.Schedule.Cron, cfg.Schedule.Timezone)
}
