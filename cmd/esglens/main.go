package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ESGLens/internal/config"
	"github.com/TobiSchelling/ESGLens/internal/logging"
	"github.com/TobiSchelling/ESGLens/internal/pipeline"
	"github.com/TobiSchelling/ESGLens/internal/scheduler"
	"github.com/TobiSchelling/ESGLens/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	v          = config.NewViper()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "esglens",
	Short:        "ESG news analysis for listed companies",
	Long:         "ESGLens collects company news, scores it on ESG dimensions and serves the results over HTTP.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal.
		_ = godotenv.Load()

		level := v.GetString("logging.level")
		if verbose {
			level = "DEBUG"
		}
		logging.Setup(level)

		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		config.Overlay(cfg, v)
		if !verbose {
			logging.Setup(cfg.Logging.Level)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd, versionCmd, statusCmd, collectCmd, runCmd, serveCmd)
	rootCmd.AddCommand(analyzeCmd, resultsCmd, companiesCmd, financialsCmd, reportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("esglens", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/esglens/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds and classifier; put API keys in the environment or a .env file.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Companies:")
		fmt.Printf("  Known: %d\n", stats.Companies)
		fmt.Printf("  Tracked: %d\n", stats.TrackedCompanies)
		fmt.Println("\nNews:")
		fmt.Printf("  Collected: %d\n", stats.NewsArticles)
		fmt.Printf("  Awaiting content: %d\n", stats.PendingFetch)
		fmt.Println("\nAnalysis:")
		fmt.Printf("  Stored results: %d\n", stats.Results)
		fmt.Printf("  Runs: %d\n", stats.Runs)
		if stats.LastRunAt != nil {
			fmt.Printf("  Last run: %s\n", *stats.LastRunAt)
		}

		fmt.Println("\nIntegrations:")
		fmt.Printf("  Classifier: %s\n", cfg.Classifier.Provider)
		fmt.Printf("  DART key: %s\n", present(config.Secret(cfg.Disclosure.APIKeyEnv)))
		fmt.Printf("  Telegram alerts: %t\n", cfg.Notifications.Telegram.Enabled)
		fmt.Printf("  Schedule: %s\n", scheduleSummary())
		return nil
	},
}

// --- collect / run ---

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect news for tracked companies from configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := newCollector(db).Collect(cmd.Context())

		fmt.Println("Collection complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New articles: %d\n", result.NewArticles)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		if result.Failed > 0 {
			fmt.Printf("  Failed: %d\n", result.Failed)
		}
		for code, n := range result.Companies {
			fmt.Printf("  %s: %d new\n", code, n)
		}
		return nil
	},
}

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> fetch -> analyze -> notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc, err := newService(db)
		if err != nil {
			return err
		}
		pipe, err := newPipeline(db, svc)
		if err != nil {
			return err
		}

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(cmd.Context())
		}
		printSteps(result)
		return result.Err()
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Summary != "" {
			fmt.Printf("  %s\n", step.Summary)
		}
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		}
	}
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the scheduler when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		deps, pipe, err := newServeComponents(db)
		if err != nil {
			return err
		}

		if pipe != nil {
			sched, err := scheduler.New(cfg.Schedule.Cron, cfg.Schedule.Timezone, func(ctx context.Context) {
				result := pipe.Run(ctx)
				if err := result.Err(); err != nil {
					deps.Logger.Error("scheduled run failed", "error", err)
				}
			}, deps.Logger)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
		fmt.Printf("Serving ESG API at http://localhost:%d\n", cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, server.New(deps).Handler(), addr, deps.Logger)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 5002, "Port to run server on")
	if err := v.BindPFlag("server.port", serveCmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}
}
