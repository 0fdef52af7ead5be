package changelog

import (
	"context"

	"github.com/pthm/dbsync/pkg/vcs"
)

// HeadersEqual reports whether file has the same header at revisions a and b.
// Only exact textual equality counts.
func (m *Materializer) HeadersEqual(ctx context.Context, file vcs.File, a, b vcs.Revision) (bool, error) {
	ha, err := m.Header(ctx, file, a)
	if err != nil {
		return false, err
	}
	hb, err := m.Header(ctx, file, b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
