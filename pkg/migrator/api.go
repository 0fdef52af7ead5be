package migrator

import (
	"context"
	"database/sql"

	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Sync brings db up to the latest revision of file in one operation.
// This is the recommended high-level API for most applications.
//
// The function is safe to call on every deploy. The database version is read
// from the row described by cfg, the changelog is planned with the default
// header size and blank revision, and everything is applied atomically.
//
// Example usage in a deploy step:
//
//	res, err := migrator.Sync(ctx, db, vcs.NewSVN(vcs.SVNOptions{}),
//	    vcs.File{Path: "db/alteracoes-db.sql"}, store.Config{})
//	if err != nil {
//	    log.Fatalf("sync failed: %v", err)
//	}
//
// For dry-run, mark-only or a custom header size, build a Runner.
func Sync(ctx context.Context, db *sql.DB, client vcs.Client, file vcs.File, cfg store.Config) (Result, error) {
	return SyncWithOptions(ctx, db, client, file, cfg, changelog.Options{}, Options{})
}

// SyncWithOptions is Sync with control over materialization and application.
//
// Example: preview the SQL of the next deploy without applying it
//
//	var buf bytes.Buffer
//	_, err := migrator.SyncWithOptions(ctx, db, client, file, store.Config{},
//	    changelog.Options{}, migrator.Options{DryRun: &buf})
func SyncWithOptions(ctx context.Context, db *sql.DB, client vcs.Client, file vcs.File, cfg store.Config, copts changelog.Options, opts Options) (Result, error) {
	planner := changelog.NewPlanner(changelog.NewMaterializer(client, copts), opts.Logger)
	return NewRunner(client, planner, store.NewSQLStore(cfg), opts).Run(ctx, db, file)
}
