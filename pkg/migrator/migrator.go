package migrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Options controls how plans are applied.
type Options struct {
	// DryRun writes the plan as annotated SQL to the provided writer instead of
	// executing it. Nothing is written to the database.
	DryRun io.Writer

	// MarkOnly records the new version without executing any block. Use when
	// the changes were applied by hand.
	MarkOnly bool

	// Logger receives one record per applied block. Defaults to slog.Default().
	Logger *slog.Logger
}

// Result describes the outcome of applying a plan.
type Result struct {
	From vcs.Revision
	To   vcs.Revision

	// Blocks is the number of blocks executed.
	Blocks int
	// Bytes is the total SQL executed.
	Bytes int

	// Skipped is set when nothing needed to be done; Reason says why.
	Skipped bool
	Reason  string

	DryRun   bool
	MarkOnly bool
}

// Skip reasons.
const (
	ReasonUpToDate       = "up to date"
	ReasonInvalidVersion = "invalid final version"
)

// Migrator applies migration plans to a database.
type Migrator struct {
	store  store.VersionStore
	opts   Options
	logger *slog.Logger
}

// NewMigrator creates a Migrator that records versions in s.
func NewMigrator(s store.VersionStore, opts Options) *Migrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: s, opts: opts, logger: logger}
}

// Apply executes the plan's blocks in order and records plan.To as the new
// version.
//
// When db supports BeginTx (*sql.DB) the whole plan runs in a transaction of
// its own. Otherwise db is assumed to be a transaction managed by the caller,
// who must roll it back if Apply fails.
//
// An empty plan is never applied: Apply returns a skipped Result without
// touching the database. A plan moving the version backwards fails with
// ErrVersionAhead.
func (m *Migrator) Apply(ctx context.Context, db Execer, plan *changelog.Plan) (Result, error) {
	if plan == nil {
		return Result{Skipped: true, Reason: ReasonUpToDate}, nil
	}
	res := Result{From: plan.From, To: plan.To, MarkOnly: m.opts.MarkOnly}

	if plan.To < plan.From {
		return res, &dbsync.VersionError{
			Op:       "applying plan for " + plan.File.Path,
			Expected: int64(plan.From),
			Actual:   int64(plan.To),
			Err:      dbsync.ErrVersionAhead,
		}
	}
	if plan.Empty() {
		res.Skipped = true
		res.Reason = ReasonUpToDate
		return res, nil
	}

	if m.opts.DryRun != nil {
		m.outputDryRun(m.opts.DryRun, plan)
		res.DryRun = true
		return res, nil
	}

	if txer, ok := db.(txBeginner); ok {
		tx, err := txer.BeginTx(ctx, nil)
		if err != nil {
			return res, fmt.Errorf("starting transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := m.apply(ctx, tx, plan, &res); err != nil {
			return res, err
		}
		if err := tx.Commit(); err != nil {
			return res, fmt.Errorf("committing version %d: %w", plan.To, err)
		}
		return res, nil
	}

	// Caller-managed transaction (*sql.Tx)
	if err := m.apply(ctx, db, plan, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (m *Migrator) apply(ctx context.Context, db Execer, plan *changelog.Plan, res *Result) error {
	if !m.opts.MarkOnly {
		for i, b := range plan.Blocks {
			log := m.logger.With(
				"file", plan.File.Path,
				"block", i+1,
				"mode", b.Mode.String(),
				"from", int64(b.From),
				"to", int64(b.To),
				"bytes", len(b.SQL),
			)
			if strings.TrimSpace(b.SQL) == "" {
				log.Debug("skipping empty block")
				continue
			}

			log.Info("applying block")
			log.Debug("block sql", "sql", b.SQL)
			if _, err := db.ExecContext(ctx, b.SQL); err != nil {
				return fmt.Errorf("applying %s of %s: %w", b, plan.File, err)
			}
			res.Blocks++
			res.Bytes += len(b.SQL)
		}
	} else {
		m.logger.Info("mark-only: not executing blocks", "file", plan.File.Path, "blocks", len(plan.Blocks))
	}

	return m.store.Set(ctx, db, int64(plan.To))
}

// outputDryRun writes the plan as SQL to the provided writer.
func (m *Migrator) outputDryRun(w io.Writer, plan *changelog.Plan) {
	rule := "-- ============================================================\n"

	// Header
	_, _ = fmt.Fprintf(w, "-- dbsync migration (dry-run)\n")
	_, _ = fmt.Fprintf(w, "-- File: %s\n", plan.File)
	_, _ = fmt.Fprintf(w, "-- Version: %d -> %d\n", plan.From, plan.To)
	_, _ = fmt.Fprintf(w, "-- Blocks: %d (%d bytes)\n", len(plan.Blocks), plan.Size())
	if len(plan.Boundaries) > 0 {
		bs := make([]string, len(plan.Boundaries))
		for i, b := range plan.Boundaries {
			bs[i] = b.String()
		}
		_, _ = fmt.Fprintf(w, "-- Header rewrites (last stable|first changed): %s\n", strings.Join(bs, ", "))
	}
	if m.opts.MarkOnly {
		_, _ = fmt.Fprintf(w, "-- Mark-only: blocks below are not executed\n")
	}
	_, _ = fmt.Fprintf(w, "\n")

	// Blocks
	for i, b := range plan.Blocks {
		_, _ = fmt.Fprint(w, rule)
		_, _ = fmt.Fprintf(w, "-- Block %d/%d: %s (%d bytes)\n", i+1, len(plan.Blocks), b, len(b.SQL))
		_, _ = fmt.Fprint(w, rule)
		_, _ = fmt.Fprintf(w, "\n%s\n", b.SQL)
	}

	// Version record
	_, _ = fmt.Fprint(w, rule)
	_, _ = fmt.Fprintf(w, "-- Version Record\n")
	_, _ = fmt.Fprint(w, rule)
	_, _ = fmt.Fprintf(w, "\n-- version %d\n", plan.To)
}
