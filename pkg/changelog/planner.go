package changelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Mode says how a Block's SQL was obtained.
type Mode int

const (
	// ModeDiff blocks hold the lines added between two revisions.
	ModeDiff Mode = iota
	// ModeSnapshot blocks hold the full file content as of a revision.
	ModeSnapshot
)

func (m Mode) String() string {
	switch m {
	case ModeDiff:
		return "diff"
	case ModeSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is a step of the planning state machine.
type State int

const (
	// StateStable means the header did not change across the planned range.
	StateStable State = iota
	// StateSplitting means the range is being split at header rewrites.
	StateSplitting
	// StateDone means planning finished.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateSplitting:
		return "splitting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Block is a unit of SQL text with the revisions it came from.
// Snapshot blocks have From == To.
type Block struct {
	SQL  string
	From vcs.Revision
	To   vcs.Revision
	Mode Mode
}

func (b Block) String() string {
	if b.Mode == ModeSnapshot {
		return fmt.Sprintf("snapshot@%d", b.To)
	}
	return fmt.Sprintf("diff %d..%d", b.From, b.To)
}

// Plan is the ordered SQL needed to move a database from From to To.
type Plan struct {
	File vcs.File
	From vcs.Revision
	To   vcs.Revision

	// Blocks are applied in order.
	Blocks []Block

	// Boundaries are the header rewrites found while planning.
	Boundaries []Boundary

	// States lists the planner states in the order they were entered.
	States []State
}

// Empty reports whether the plan moves the database nowhere.
func (p *Plan) Empty() bool {
	return p == nil || p.From == p.To
}

// Size returns the total length of the plan's SQL in bytes.
func (p *Plan) Size() int {
	n := 0
	for _, b := range p.Blocks {
		n += len(b.SQL)
	}
	return n
}

// Planner computes migration plans.
type Planner struct {
	m      *Materializer
	logger *slog.Logger
}

// NewPlanner creates a Planner. A nil logger uses slog.Default().
func NewPlanner(m *Materializer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{m: m, logger: logger}
}

// Plan computes the SQL that brings a database at revision initial up to
// revision final of file.
//
// If the header is the same at both ends, the plan is a single diff. Otherwise
// the range is cut at every header rewrite: the part of the first epoch after
// initial is applied as a diff, every intermediate epoch is replayed from a
// snapshot of its last revision, and the final epoch from a snapshot of final.
func (p *Planner) Plan(ctx context.Context, file vcs.File, initial, final vcs.Revision) (*Plan, error) {
	if final < 0 {
		return nil, fmt.Errorf("planning %s to %d: %w", file, final, dbsync.ErrInvalidFinalVersion)
	}
	if final < initial {
		return nil, &dbsync.VersionError{
			Op:       "plan " + file.Path,
			Expected: int64(initial),
			Actual:   int64(final),
			Err:      dbsync.ErrVersionAhead,
		}
	}

	plan := &Plan{File: file, From: initial, To: final}
	if initial == final {
		return plan, nil
	}

	log := p.logger.With("file", file.Path, "from", int64(initial), "to", int64(final))

	equal, err := p.m.HeadersEqual(ctx, file, initial, final)
	if err != nil {
		return nil, err
	}

	if equal {
		p.enter(plan, log, StateStable)
		sql, err := p.m.Diff(ctx, file, initial, final, DiffOptions{})
		if err != nil {
			return nil, err
		}
		plan.Blocks = append(plan.Blocks, Block{SQL: sql, From: initial, To: final, Mode: ModeDiff})
		p.enter(plan, log, StateDone)
		return plan, nil
	}

	p.enter(plan, log, StateSplitting)
	cur := initial
	first := true
	for !equal {
		b, err := p.m.FindBoundary(ctx, file, cur, final)
		if err != nil {
			return nil, err
		}
		plan.Boundaries = append(plan.Boundaries, b)
		log.Debug("header rewrite found", "last_stable", int64(b.LastStable), "first_changed", int64(b.FirstChanged))

		if first {
			if b.LastStable != cur {
				sql, err := p.m.Diff(ctx, file, cur, b.LastStable, DiffOptions{Relaxed: true})
				if err != nil {
					return nil, err
				}
				plan.Blocks = append(plan.Blocks, Block{SQL: sql, From: cur, To: b.LastStable, Mode: ModeDiff})
			}
			first = false
		} else {
			sql, err := p.m.Snapshot(ctx, file, b.LastStable, Unbounded)
			if err != nil {
				return nil, err
			}
			plan.Blocks = append(plan.Blocks, Block{SQL: sql, From: b.LastStable, To: b.LastStable, Mode: ModeSnapshot})
		}

		cur = b.FirstChanged
		if equal, err = p.m.HeadersEqual(ctx, file, cur, final); err != nil {
			return nil, err
		}
	}

	sql, err := p.m.Snapshot(ctx, file, final, Unbounded)
	if err != nil {
		return nil, err
	}
	plan.Blocks = append(plan.Blocks, Block{SQL: sql, From: final, To: final, Mode: ModeSnapshot})
	p.enter(plan, log, StateDone)

	return plan, nil
}

func (p *Planner) enter(plan *Plan, log *slog.Logger, s State) {
	plan.States = append(plan.States, s)
	log.Debug("planner state", "state", s.String(), "blocks", len(plan.Blocks))
}
