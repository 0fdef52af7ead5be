package changelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Unbounded disables the line limit of AddedLines and Snapshot.
const Unbounded = -1

// DefaultHeaderLines is the number of leading lines that make up a header.
const DefaultHeaderLines = 2

// Options configures a Materializer.
type Options struct {
	// HeaderLines is the number of leading lines compared to detect a header
	// rewrite. Values below 1 select DefaultHeaderLines.
	HeaderLines int

	// BlankRevision is a revision at which the changelog is known to be
	// empty. Snapshots are diffs taken from it.
	BlankRevision vcs.Revision
}

// DiffOptions controls Diff.
type DiffOptions struct {
	// Relaxed skips the trailing blank line check. Used for partial segments
	// that end in the middle of an epoch.
	Relaxed bool
}

// Materializer turns revision pairs into SQL text using a vcs.Client.
type Materializer struct {
	client      vcs.Client
	headerLines int
	blank       vcs.Revision
}

// NewMaterializer creates a Materializer backed by client.
func NewMaterializer(client vcs.Client, opts Options) *Materializer {
	if opts.HeaderLines < 1 {
		opts.HeaderLines = DefaultHeaderLines
	}
	return &Materializer{
		client:      client,
		headerLines: opts.HeaderLines,
		blank:       opts.BlankRevision,
	}
}

// HeaderLines returns the configured header size.
func (m *Materializer) HeaderLines() int { return m.headerLines }

// AddedLines returns the lines added to file between from and to, each
// terminated by a newline. Removed and context lines are ignored. At most
// limit lines are returned unless limit is Unbounded.
func (m *Materializer) AddedLines(ctx context.Context, file vcs.File, from, to vcs.Revision, limit int) (string, error) {
	raw, err := m.client.Diff(ctx, file, from, to)
	if err != nil {
		if errors.Is(err, dbsync.ErrRevisionUnavailable) || ctx.Err() != nil {
			return "", err
		}
		return "", &dbsync.RevisionError{
			Op:   "diff",
			File: file.Path,
			From: int64(from),
			To:   int64(to),
			Err:  fmt.Errorf("%w: %v", dbsync.ErrRevisionUnavailable, err),
		}
	}

	out, err := addedLines([]byte(raw), limit)
	if err != nil {
		return "", &dbsync.RevisionError{
			Op:   "parse diff",
			File: file.Path,
			From: int64(from),
			To:   int64(to),
			Err:  err,
		}
	}
	return out, nil
}

func addedLines(raw []byte, limit int) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 || limit == 0 {
		return "", nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff(raw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	n := 0
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			for _, line := range bytes.Split(h.Body, []byte("\n")) {
				if len(line) == 0 || line[0] != '+' {
					continue
				}
				sb.Write(line[1:])
				sb.WriteByte('\n')
				n++
				if limit != Unbounded && n >= limit {
					return sb.String(), nil
				}
			}
		}
	}
	return sb.String(), nil
}

// Snapshot returns the first limit lines of file as of rev, taken as the
// lines added since the blank revision.
func (m *Materializer) Snapshot(ctx context.Context, file vcs.File, rev vcs.Revision, limit int) (string, error) {
	return m.AddedLines(ctx, file, m.blank, rev, limit)
}

// Header returns the header of file as of rev.
func (m *Materializer) Header(ctx context.Context, file vcs.File, rev vcs.Revision) (string, error) {
	return m.Snapshot(ctx, file, rev, m.headerLines)
}

// Diff returns every line added between from and to.
//
// The changelog is expected to end with a blank line, so a non-empty result
// must end in two newlines once spaces are removed. Otherwise Diff fails with
// ErrTrailingNewlineMissing unless opts.Relaxed is set.
func (m *Materializer) Diff(ctx context.Context, file vcs.File, from, to vcs.Revision, opts DiffOptions) (string, error) {
	sql, err := m.AddedLines(ctx, file, from, to, Unbounded)
	if err != nil {
		return "", err
	}
	if !opts.Relaxed && !EndsWithBlankLine(sql) {
		return "", &dbsync.RevisionError{
			Op:   "diff",
			File: file.Path,
			From: int64(from),
			To:   int64(to),
			Err:  dbsync.ErrTrailingNewlineMissing,
		}
	}
	return sql, nil
}

// EndsWithBlankLine reports whether sql is empty or ends in a blank line,
// ignoring spaces.
func EndsWithBlankLine(sql string) bool {
	if sql == "" {
		return true
	}
	return strings.HasSuffix(strings.ReplaceAll(sql, " ", ""), "\n\n")
}
