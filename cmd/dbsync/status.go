package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/internal/cli"
	"github.com/pthm/dbsync/pkg/migrator"
)

var (
	statusDB        string
	statusChangelog string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database version and pending changes",
	Long:  `Show the revision recorded in the database, the latest changelog revision and the pending blocks.`,
	Example: `  # Check status
  dbsync status --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		ws, err := newWorkspace(statusChangelog, migrator.Options{})
		if err != nil {
			return err
		}
		db, err := openDB(ctx, statusDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		st, err := ws.runner.Status(ctx, db, ws.file)
		if err != nil && !errors.Is(err, dbsync.ErrVersionAhead) {
			if dbsync.IsVersionNotFoundErr(err) {
				fmt.Println("Database version:  missing")
				fmt.Println("\nRun 'dbsync init' to create the version record.")
				return nil
			}
			return cli.SyncError("getting status", err)
		}

		printStatus(ws.file.Path, st)
		return nil
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusDB, "db", "", "database URL")
	f.StringVar(&statusChangelog, "changelog", "", "path to the changelog file")
}

func printStatus(file string, st migrator.Status) {
	fmt.Printf("Changelog:         %s\n", file)
	fmt.Printf("Database version:  %d\n", st.Current)
	if st.Latest < 0 {
		fmt.Println("Latest revision:   unknown")
	} else {
		fmt.Printf("Latest revision:   %d\n", st.Latest)
	}

	switch {
	case st.Pending():
		fmt.Printf("\n%d block(s) pending, %d bytes:\n", len(st.Plan.Blocks), st.Plan.Size())
		for _, b := range st.Plan.Boundaries {
			fmt.Printf("  header rewrite at %s\n", b)
		}
		for _, b := range st.Plan.Blocks {
			fmt.Printf("  %s (%d bytes)\n", b, len(b.SQL))
		}
	case st.Reason != "":
		fmt.Printf("\nNothing to do: %s.\n", st.Reason)
	}
}
