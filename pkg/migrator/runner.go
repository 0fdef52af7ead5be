package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Runner drives a complete sync: it reads the database version, asks the
// repository for the latest changelog revision, plans, applies and commits,
// all inside one transaction.
type Runner struct {
	client   vcs.Client
	planner  *changelog.Planner
	store    store.VersionStore
	migrator *Migrator
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(client vcs.Client, planner *changelog.Planner, s store.VersionStore, opts Options) *Runner {
	m := NewMigrator(s, opts)
	return &Runner{
		client:   client,
		planner:  planner,
		store:    s,
		migrator: m,
		logger:   m.logger,
	}
}

// Store returns the version store the runner reads and writes.
func (r *Runner) Store() store.VersionStore { return r.store }

// Run brings db up to the latest revision of file.
//
// A missing version row aborts the run before any SQL is executed. A negative
// latest revision, which some repositories report while a release is being
// cut, is not an error: the run is skipped with ReasonInvalidVersion.
func (r *Runner) Run(ctx context.Context, db *sql.DB, file vcs.File) (Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := r.store.Get(ctx, tx)
	if err != nil {
		return Result{}, err
	}
	log := r.logger.With("file", file.Path)
	log.Info("current database version", "version", current)

	latest, err := r.client.LatestRevision(ctx, file)
	if err != nil {
		return Result{}, fmt.Errorf("reading latest revision of %s: %w", file, err)
	}
	log.Info("latest changelog revision", "revision", int64(latest))

	res := Result{From: vcs.Revision(current), To: latest}
	if latest < 0 {
		log.Warn("invalid final version, nothing to do", "revision", int64(latest))
		res.Skipped = true
		res.Reason = ReasonInvalidVersion
		return res, nil
	}
	if vcs.Revision(current) == latest {
		log.Info("database is up to date")
		res.Skipped = true
		res.Reason = ReasonUpToDate
		return res, nil
	}

	plan, err := r.planner.Plan(ctx, file, vcs.Revision(current), latest)
	if err != nil {
		return res, err
	}

	res, err = r.migrator.Apply(ctx, tx, plan)
	if err != nil {
		return res, err
	}
	if res.DryRun {
		return res, nil
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing version %d: %w", latest, err)
	}
	log.Info("database updated", "version", int64(latest), "blocks", res.Blocks, "bytes", res.Bytes)
	return res, nil
}

// Status is a read-only view of where a database stands.
type Status struct {
	Current int64
	Latest  vcs.Revision

	// Plan is the pending work, nil when there is none or it cannot be
	// computed (see Reason).
	Plan   *changelog.Plan
	Reason string
}

// Pending reports whether the database is behind the changelog.
func (s Status) Pending() bool {
	return s.Plan != nil && !s.Plan.Empty()
}

// Status reports the database version, the latest revision and the plan
// between them without changing anything.
func (r *Runner) Status(ctx context.Context, db store.DB, file vcs.File) (Status, error) {
	current, err := r.store.Get(ctx, db)
	if err != nil {
		return Status{}, err
	}
	latest, err := r.client.LatestRevision(ctx, file)
	if err != nil {
		return Status{Current: current}, fmt.Errorf("reading latest revision of %s: %w", file, err)
	}

	st := Status{Current: current, Latest: latest}
	switch {
	case latest < 0:
		st.Reason = ReasonInvalidVersion
		return st, nil
	case vcs.Revision(current) == latest:
		st.Reason = ReasonUpToDate
		return st, nil
	}

	st.Plan, err = r.planner.Plan(ctx, file, vcs.Revision(current), latest)
	if err != nil {
		if errors.Is(err, dbsync.ErrVersionAhead) {
			st.Reason = "database ahead of changelog"
		}
		return st, err
	}
	return st, nil
}
