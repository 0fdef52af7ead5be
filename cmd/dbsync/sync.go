package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/internal/cli"
	"github.com/pthm/dbsync/pkg/migrator"
)

var (
	syncDB        string
	syncChangelog string
	syncDryRun    bool
	syncMarkOnly  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply pending changelog statements",
	Long: `Apply the changelog statements added since the revision recorded in the
database, then record the latest revision. Everything runs in one transaction.`,
	Example: `  # Sync using dbsync.yaml
  dbsync sync

  # Sync a specific database and changelog
  dbsync sync --db postgres://localhost/mydb --changelog db/alteracoes-db.sql

  # Preview the SQL without applying it
  dbsync sync --dry-run

  # Record the latest revision after applying the changes by hand
  dbsync sync --mark-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := syncOptions{
			db:        syncDB,
			changelog: syncChangelog,
			dryRun:    resolveBool(syncDryRun, cfg.Sync.DryRun),
			markOnly:  resolveBool(syncMarkOnly, cfg.Sync.MarkOnly),
		}
		return runSync(cmd.Context(), opts)
	},
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncDB, "db", "", "database URL")
	f.StringVar(&syncChangelog, "changelog", "", "path to the changelog file")
	f.BoolVar(&syncDryRun, "dry-run", false, "output the SQL without applying it")
	f.BoolVar(&syncMarkOnly, "mark-only", false, "record the latest revision without executing SQL")
}

type syncOptions struct {
	db        string
	changelog string
	dryRun    bool
	markOnly  bool
}

func runSync(parent context.Context, o syncOptions) error {
	if cfg.Sync.Skip {
		if !quiet {
			fmt.Println("dbsync skipped")
		}
		return nil
	}

	ctx, cancel := commandContext(parent)
	defer cancel()

	mopts := migrator.Options{MarkOnly: o.markOnly}
	if o.dryRun {
		mopts.DryRun = os.Stdout
		if !quiet {
			fmt.Fprintln(os.Stderr, "-- Dry-run mode: SQL will be output but not applied")
			fmt.Fprintln(os.Stderr, "")
		}
	}

	ws, err := newWorkspace(o.changelog, mopts)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, o.db)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := ws.runner.Run(ctx, db, ws.file)
	if err != nil {
		if dbsync.IsVersionNotFoundErr(err) {
			return cli.GeneralError("version record not found (run 'dbsync init' first)", err)
		}
		return cli.SyncError("sync failed", err)
	}

	if o.dryRun || quiet {
		return nil
	}
	printResult(res)
	return nil
}

func printResult(res migrator.Result) {
	switch {
	case res.Skipped && res.Reason == migrator.ReasonInvalidVersion:
		fmt.Println("Latest changelog revision is unknown, sync skipped.")
	case res.Skipped:
		fmt.Printf("Database is up to date at revision %d.\n", res.From)
	case res.MarkOnly:
		fmt.Printf("Database marked at revision %d (was %d), no SQL executed.\n", res.To, res.From)
	default:
		fmt.Printf("Database synced from revision %d to %d (%d blocks, %d bytes).\n",
			res.From, res.To, res.Blocks, res.Bytes)
	}
}
