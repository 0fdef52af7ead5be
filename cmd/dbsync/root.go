package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pthm/dbsync/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     *slog.Logger

	// Persistent flags
	cfgFile string
	envFile string
	verbose int
	quiet   bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dbsync",
	Short: "Keep a database in sync with a versioned SQL changelog",
	Long: `dbsync - Database Changelog Sync

dbsync applies the SQL statements added to a changelog file since the revision
recorded in the database, then records the new revision, all in one
transaction. Header rewrites of the changelog are detected and replayed from
snapshots.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}
		return loadConfig()
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupSync    = "sync"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover dbsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration, if present")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (default: sync.timeout, none)")

	// Define command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: groupSync, Title: "Sync:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Sync commands
	syncCmd.GroupID = groupSync
	planCmd.GroupID = groupSync
	statusCmd.GroupID = groupSync
	initCmd.GroupID = groupSync
	doctorCmd.GroupID = groupSync
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)

	// Utility commands
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the dotenv file and the configuration, and builds the
// logger.
func loadConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cli.ConfigError("loading "+envFile, err)
		}
	}

	var err error
	cfg, configPath, err = cli.LoadConfig(cfgFile)
	if err != nil {
		return cli.ConfigError("loading configuration", err)
	}

	logger = cli.NewLogger(os.Stderr, verbose, quiet, cfg.Log.Format)
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = cli.GeneralError(fmt.Sprintf("run exceeded timeout of %s", effectiveTimeout()), err)
	}
	cli.ExitWithError(err)
}

func effectiveTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	if cfg != nil {
		return cfg.Sync.Timeout
	}
	return 0
}

// commandContext returns the context for a run: cancelled on interrupt and
// bounded by --timeout or sync.timeout when set.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	d := effectiveTimeout()
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
