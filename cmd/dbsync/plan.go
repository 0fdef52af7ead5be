package main

import (
	"github.com/spf13/cobra"
)

var (
	planDB        string
	planChangelog string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the pending SQL without applying it",
	Long: `Compute the sync plan and print it as annotated SQL: the version range, the
header rewrites found and every block with its provenance. Nothing is written
to the database.`,
	Example: `  # Show what the next sync would run
  dbsync plan

  # Save the plan for review
  dbsync plan --db postgres://localhost/mydb > pending.sql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), syncOptions{
			db:        planDB,
			changelog: planChangelog,
			dryRun:    true,
		})
	},
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planDB, "db", "", "database URL")
	f.StringVar(&planChangelog, "changelog", "", "path to the changelog file")
}
