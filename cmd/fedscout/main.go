package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/agency"
	"github.com/fedscout/fedscout/internal/config"
	"github.com/fedscout/fedscout/internal/database"
	"github.com/fedscout/fedscout/internal/importer"
	"github.com/fedscout/fedscout/internal/llm"
	"github.com/fedscout/fedscout/internal/logger"
	"github.com/fedscout/fedscout/internal/notify"
	"github.com/fedscout/fedscout/internal/scheduler"
	"github.com/fedscout/fedscout/internal/scoring"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fedscout",
	Short:   "Federal contracting opportunity intelligence",
	Long:    "Fedscout imports SAM.gov opportunity data, scores it with AI, and alerts on high-value matches.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
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

		log, err = logger.New(cfg.Logging.JSON, cfg.Logging.Debug || verbose)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fedscout", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/fedscout/",
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
		fmt.Println("Edit it to configure the data source, API keys, and notification channels.")
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
		fmt.Println("Opportunities:")
		fmt.Printf("  Total imported: %d\n", stats.Opportunities)
		fmt.Printf("  Agencies: %d\n", stats.Agencies)
		fmt.Println("\nScoring:")
		fmt.Printf("  Scores: %d\n", stats.Scores)
		fmt.Printf("  High scores (>= %d): %d\n", cfg.Alerts.ScoreThreshold, stats.HighScores)
		fmt.Println("\nActivity:")
		fmt.Printf("  Alerts dispatched: %d\n", stats.AlertsDispatched)
		fmt.Printf("  Recorded runs: %d\n", stats.SyncLogs)

		logs, err := db.RecentSyncLogs(5)
		if err != nil {
			return err
		}
		if len(logs) > 0 {
			fmt.Println("\nRecent runs:")
			for _, entry := range logs {
				started := ""
				if entry.StartedAt != nil {
					started = *entry.StartedAt
				}
				fmt.Printf("  %-18s %-8s processed=%d errors=%d  %s\n",
					entry.SyncType, entry.Status, entry.RecordsProcessed, entry.ErrorCount, started)
			}
		}
		return nil
	},
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import cached SAM.gov opportunity JSON into the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source := cfg.Import.SourcePath
		if len(args) > 0 {
			source = args[0]
		}

		resolver := agency.NewResolver(db, log)
		imp := importer.New(db, resolver, log, cfg.Import.ChunkSize)

		fmt.Printf("Importing from %s...\n", source)
		result, err := imp.Run(source)
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Documents read: %d\n", result.Total)
		fmt.Printf("  Imported: %d\n", result.Succeeded)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		return nil
	},
}

// --- score command ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score unscored opportunities with the AI analyst",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		apiKey := os.Getenv(cfg.Scoring.APIKeyEnv)
		if apiKey == "" {
			return fmt.Errorf("API key not set; export %s", cfg.Scoring.APIKeyEnv)
		}

		client := llm.NewClient(cfg.Scoring.BaseURL, apiKey, cfg.Scoring.Model, cfg.Scoring.MaxTokens, log)
		pipe := scoring.New(db, client, log, cfg.Scoring.PageSize, cfg.Scoring.Capabilities)

		fmt.Println("Scoring unscored opportunities...")
		result, err := pipe.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nScoring complete:")
		fmt.Printf("  Scored: %d\n", result.Scored)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		fmt.Printf("  Errors: %d\n", result.Errors)
		return nil
	},
}

// --- alert and digest commands ---

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Run the high-score alert sweep once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		chat, email := newNotifiers()
		scheduler.NewAlertJob(db, chat, email, cfg.Alerts, log).Run()
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Build and send the weekly digest once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		chat, email := newNotifiers()
		scheduler.NewDigestJob(db, chat, email, cfg.Digest, log).Run()
		return nil
	},
}

// --- schedule command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the alert and digest jobs on their cron schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		chat, email := newNotifiers()
		sched := scheduler.New(log)

		if err := sched.Add(cfg.Alerts.Cron, scheduler.NewAlertJob(db, chat, email, cfg.Alerts, log)); err != nil {
			return fmt.Errorf("registering alert schedule %q: %w", cfg.Alerts.Cron, err)
		}
		if err := sched.Add(cfg.Digest.Cron, scheduler.NewDigestJob(db, chat, email, cfg.Digest, log)); err != nil {
			return fmt.Errorf("registering digest schedule %q: %w", cfg.Digest.Cron, err)
		}

		sched.Start()
		fmt.Printf("Scheduler running (alerts: %q, digest: %q). Press Ctrl+C to stop.\n",
			cfg.Alerts.Cron, cfg.Digest.Cron)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		fmt.Println("\nShutting down, waiting for running jobs...")
		<-sched.Stop().Done()
		return nil
	},
}

func newNotifiers() (*notify.ChatClient, *notify.EmailClient) {
	chat := notify.NewChatClient(cfg.Notifications.Webhook.URL, cfg.Notifications.Webhook.Enabled, log)
	smtp := cfg.Notifications.SMTP
	email := notify.NewEmailClient(
		smtp.Host, smtp.Port, smtp.From,
		os.Getenv(smtp.UsernameEnv), os.Getenv(smtp.PasswordEnv),
		log,
	)
	return chat, email
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "fedscout.db")
	return database.Open(dbPath)
}
