package main

import (
	"context"
	"database/sql"

	"github.com/pthm/dbsync/internal/cli"
	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/migrator"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

// workspace holds what the database commands share: the changelog, its
// history and a runner over them.
type workspace struct {
	file   vcs.File
	client vcs.Client
	runner *migrator.Runner
}

// newWorkspace resolves the changelog, VCS and version store from the
// configuration. changelogPath overrides changelog.path when set.
func newWorkspace(changelogPath string, opts migrator.Options) (*workspace, error) {
	file, err := cfg.ChangelogFile(changelogPath)
	if err != nil {
		return nil, cli.ConfigError("changelog configuration", err)
	}
	client, err := cfg.VCSClient()
	if err != nil {
		return nil, cli.ConfigError("vcs configuration", err)
	}
	sc, err := cfg.StoreConfig()
	if err != nil {
		return nil, cli.ConfigError("version store configuration", err)
	}

	s := store.NewSQLStore(sc)
	opts.Logger = logger
	planner := changelog.NewPlanner(changelog.NewMaterializer(client, cfg.MaterializerOptions()), logger)

	return &workspace{
		file:   file,
		client: client,
		runner: migrator.NewRunner(client, planner, s, opts),
	}, nil
}

// openDB applies the --db flag over the configured URL and connects.
func openDB(ctx context.Context, flagDSN string) (*sql.DB, error) {
	if flagDSN != "" {
		cfg.Database.URL = flagDSN
	}
	if cfg.Database.URL == "" && cfg.Database.Host == "" && cfg.Database.Name == "" {
		return nil, cli.ConfigError("database URL is required (use --db or set database.url in config)", nil)
	}
	return cfg.OpenDB(ctx)
}
