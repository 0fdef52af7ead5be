package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/dbsync/internal/cli"
	"github.com/pthm/dbsync/pkg/store"
)

var (
	initDB      string
	initVersion int64
	initPrint   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the version table and seed the version row",
	Long: `Create the version table if it does not exist and insert the version row
with the given revision. An existing row is left untouched.`,
	Example: `  # Start tracking an existing database at revision 1417
  dbsync init --version 1417

  # Print the DDL instead of running it
  dbsync init --print`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := cfg.StoreConfig()
		if err != nil {
			return cli.ConfigError("version store configuration", err)
		}
		s := store.NewSQLStore(sc)

		if initPrint {
			create, seed, err := s.DDL()
			if err != nil {
				return cli.ConfigError("rendering version table DDL", err)
			}
			fmt.Printf("%s;\n\n%s;\n", create, seed)
			return nil
		}

		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		db, err := openDB(ctx, initDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		inserted, err := s.Init(ctx, db, initVersion)
		if err != nil {
			return cli.GeneralError("initializing version table", err)
		}

		if quiet {
			return nil
		}
		c := s.Config()
		if inserted {
			fmt.Printf("Version %q seeded at revision %d in %s.\n", c.Key, initVersion, c.Table)
		} else {
			fmt.Printf("Version %q already present in %s, left unchanged.\n", c.Key, c.Table)
		}
		return nil
	},
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initDB, "db", "", "database URL")
	f.Int64Var(&initVersion, "version", 0, "revision the database is currently at")
	f.BoolVar(&initPrint, "print", false, "print the DDL instead of executing it")
}
