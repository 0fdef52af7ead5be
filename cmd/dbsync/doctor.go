package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/dbsync/internal/cli"
	"github.com/pthm/dbsync/internal/doctor"
	"github.com/pthm/dbsync/pkg/migrator"
	"github.com/pthm/dbsync/pkg/store"
)

var (
	doctorDB        string
	doctorChangelog string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Run health checks on the configuration, the changelog and its history, and the target database.`,
	Example: `  # Run health checks
  dbsync doctor --db postgres://localhost/mydb

  # Run with detailed output
  dbsync doctor -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		ws, err := newWorkspace(doctorChangelog, migrator.Options{})
		if err != nil {
			return err
		}

		// A database that cannot be reached is reported, not fatal.
		var db store.DB
		conn, dbErr := openDB(ctx, doctorDB)
		if dbErr == nil {
			defer func() { _ = conn.Close() }()
			db = conn
		}

		if !quiet {
			fmt.Println("dbsync doctor - Health Check")
		}

		report, err := doctor.New(db, ws.client, ws.file, ws.runner).
			WithConfig(configPath, nil).
			WithConnectError(dbErr).
			Run(ctx)
		if err != nil {
			return cli.GeneralError("running doctor", err)
		}

		report.Print(os.Stdout, verbose > 0)

		if report.HasErrors() {
			return cli.GeneralError("health checks failed", nil)
		}
		return nil
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorChangelog, "changelog", "", "path to the changelog file")
}
