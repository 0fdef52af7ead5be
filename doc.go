// Package dbsync keeps a relational database's schema version in step with an
// append-only SQL changelog tracked in version control.
//
// # Model
//
// Every committed revision of the changelog file accretes SQL statements. The
// database stores the revision it was last synchronized to. A run computes the
// SQL added since that revision, executes it, and records the new revision, all
// inside one transaction.
//
// # Header Epochs
//
// The first lines of the changelog act as a structural fingerprint. When they
// change between two revisions, the file was rewritten (squashed, restructured)
// and line-based diffs spanning the rewrite are no longer meaningful. The
// planner in pkg/changelog detects these epoch boundaries and switches from
// incremental diffs to full snapshots across them.
//
// # Packages
//
//   - pkg/vcs: version-control backends (svn, git, in-memory).
//   - pkg/changelog: content materialization and the migration planner.
//   - pkg/store: the database version store.
//   - pkg/migrator: transactional plan execution and the end-to-end Runner.
//
// # Basic Usage
//
//	client := vcs.NewSVN(vcs.SVNOptions{})
//	planner := changelog.NewPlanner(changelog.NewMaterializer(client, changelog.Options{}), nil)
//	runner := migrator.NewRunner(client, planner, store.NewSQLStore(store.Config{}), migrator.Options{})
//	res, err := runner.Run(ctx, db, vcs.File{Path: "db/alteracoes-db.sql"})
//
// This package holds the sentinel errors shared by all of the above.
package dbsync
