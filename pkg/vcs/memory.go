package vcs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/pthm/dbsync"
)

type memoryCommit struct {
	rev     Revision
	content string
}

// Memory is an in-process Client. Revisions are global across files, like a
// single SVN repository: every commit advances the counter whichever file it
// touches. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	head  Revision
	files map[string][]memoryCommit
}

// NewMemory creates an empty repository at revision 0.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]memoryCommit)}
}

// Commit records new content for path at the next revision and returns it.
func (m *Memory) Commit(path, content string) Revision {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.head++
	m.files[path] = append(m.files[path], memoryCommit{rev: m.head, content: content})
	return m.head
}

// CommitAt records content for path at an explicit revision, which must be
// greater than every revision committed so far.
func (m *Memory) CommitAt(path string, rev Revision, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rev <= m.head {
		return fmt.Errorf("vcs: revision %d is not after head %d", rev, m.head)
	}
	m.head = rev
	m.files[path] = append(m.files[path], memoryCommit{rev: rev, content: content})
	return nil
}

// contentAt returns the file content as of rev: the newest commit at or
// before it. Revision 0 is always the empty file.
func (m *Memory) contentAt(file File, rev Revision) (string, error) {
	commits := m.files[file.Path]
	if rev == 0 {
		return "", nil
	}
	unavailable := func() error {
		return &dbsync.RevisionError{
			Op:   "memory cat",
			File: file.Path,
			From: int64(rev),
			To:   int64(rev),
			Err:  dbsync.ErrRevisionUnavailable,
		}
	}
	if rev < 0 || rev > m.head {
		return "", unavailable()
	}
	i := sort.Search(len(commits), func(i int) bool { return commits[i].rev > rev })
	if i == 0 {
		return "", unavailable()
	}
	return commits[i-1].content, nil
}

// LatestRevision returns the revision of the last commit to the file.
func (m *Memory) LatestRevision(_ context.Context, file File) (Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	commits := m.files[file.Path]
	if len(commits) == 0 {
		return Unknown, nil
	}
	return commits[len(commits)-1].rev, nil
}

// Diff returns a unified diff of the file between two revisions.
func (m *Memory) Diff(ctx context.Context, file File, from, to Revision) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	before, err := m.contentAt(file, from)
	if err != nil {
		return "", err
	}
	after, err := m.contentAt(file, to)
	if err != nil {
		return "", err
	}

	edits := myers.ComputeEdits(span.URIFromPath(file.Path), before, after)
	unified := gotextdiff.ToUnified(
		fmt.Sprintf("%s@%d", file.Path, from),
		fmt.Sprintf("%s@%d", file.Path, to),
		before,
		edits,
	)
	return fmt.Sprint(unified), nil
}

// RevisionsBetween returns the revisions in the range that committed to the file.
func (m *Memory) RevisionsBetween(_ context.Context, file File, fromExclusive, toInclusive Revision) ([]Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var revs []Revision
	for _, c := range m.files[file.Path] {
		if c.rev > fromExclusive && c.rev <= toInclusive {
			revs = append(revs, c.rev)
		}
	}
	return revs, nil
}
