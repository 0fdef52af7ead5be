package changelog

import (
	"context"
	"fmt"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Boundary is the pair of revisions straddling a header rewrite.
type Boundary struct {
	// LastStable is the last revision still carrying the initial header.
	LastStable vcs.Revision
	// FirstChanged is the first revision with a different header.
	FirstChanged vcs.Revision
}

func (b Boundary) String() string {
	return fmt.Sprintf("%d|%d", b.LastStable, b.FirstChanged)
}

// FindBoundary locates the first header rewrite of file after initial, up to
// and including final. The revisions in between are scanned in order.
//
// FindBoundary fails with ErrBoundaryNotFound if every revision in the range
// shares the header of initial.
func (m *Materializer) FindBoundary(ctx context.Context, file vcs.File, initial, final vcs.Revision) (Boundary, error) {
	revs, err := m.client.RevisionsBetween(ctx, file, initial, final)
	if err != nil {
		return Boundary{}, fmt.Errorf("listing revisions of %s in (%d, %d]: %w", file, initial, final, err)
	}

	baseline, err := m.Header(ctx, file, initial)
	if err != nil {
		return Boundary{}, err
	}

	last := initial
	for _, rev := range revs {
		h, err := m.Header(ctx, file, rev)
		if err != nil {
			return Boundary{}, err
		}
		if h != baseline {
			return Boundary{LastStable: last, FirstChanged: rev}, nil
		}
		last = rev
	}

	return Boundary{}, &dbsync.RevisionError{
		Op:   "find boundary",
		File: file.Path,
		From: int64(initial),
		To:   int64(final),
		Err:  dbsync.ErrBoundaryNotFound,
	}
}
