// Package main provides the dbsync command line tool.
//
// dbsync keeps a database in step with a SQL changelog file tracked in
// Subversion or Git. The database stores the changelog revision it was last
// synced to; each run applies the statements added since then.
//
// The CLI supports:
//   - sync: Apply pending changelog statements
//   - plan: Print the pending statements without applying them
//   - status: Show the database version and the latest changelog revision
//   - init: Create the version table and seed the version row
//   - doctor: Run health checks on the changelog, history and database
//
// The positional form of older deploy scripts is still accepted:
//
//	dbsync <skip> <db-url> <db-user> <db-password> <changelog-path>
//
// where a skip of "true" turns the run into a no-op.
package main

import (
	"os"
)

func main() {
	args := os.Args[1:]
	if isLegacyInvocation(args) {
		if err := runLegacy(args); err != nil {
			exitWithError(err)
		}
		return
	}
	Execute()
}
