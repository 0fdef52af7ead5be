package vcs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pthm/dbsync"
)

// emptyTree is the object id of the empty tree in every SHA-1 git repository.
const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// GitOptions configures the Git client.
type GitOptions struct {
	// Binary is the git executable. Defaults to "git".
	Binary string

	// Runner executes commands. Defaults to ExecRunner.
	Runner Runner

	// Ref is the commit whose history is followed. Defaults to "HEAD".
	Ref string
}

// Git is a Client backed by the git command-line client.
//
// Git has no integer revisions, so they are derived from the file's history:
// revision N is the N-th commit (oldest first) reachable from Ref that touched
// the file, and revision 0 is the empty tree. The history is read once per file
// and cached for the lifetime of the client.
type Git struct {
	binary string
	runner Runner
	ref    string

	mu      sync.Mutex
	history map[File][]string
}

// NewGit creates a Git client.
func NewGit(opts GitOptions) *Git {
	if opts.Binary == "" {
		opts.Binary = "git"
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Ref == "" {
		opts.Ref = "HEAD"
	}
	return &Git{
		binary:  opts.Binary,
		runner:  opts.Runner,
		ref:     opts.Ref,
		history: make(map[File][]string),
	}
}

// commits returns the commit ids that touched the file, oldest first.
func (c *Git) commits(ctx context.Context, file File) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.history[file]; ok {
		return h, nil
	}

	out, err := c.runner.Run(ctx, file.Root, c.binary, "rev-list", "--reverse", c.ref, "--", file.Path)
	if err != nil {
		return nil, fmt.Errorf("git rev-list %s: %w", file.Path, err)
	}

	var h []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			h = append(h, line)
		}
	}
	c.history[file] = h
	return h, nil
}

// object maps a revision to a tree-ish git understands.
func (c *Git) object(history []string, file File, rev Revision) (string, error) {
	switch {
	case rev == 0:
		return emptyTree, nil
	case rev > 0 && int(rev) <= len(history):
		return history[rev-1], nil
	default:
		return "", &dbsync.RevisionError{
			Op:   "git resolve",
			File: file.Path,
			From: int64(rev),
			To:   int64(rev),
			Err:  fmt.Errorf("%w: file has %d revisions", dbsync.ErrRevisionUnavailable, len(history)),
		}
	}
}

// LatestRevision returns the number of commits that touched the file, or
// Unknown when there are none.
func (c *Git) LatestRevision(ctx context.Context, file File) (Revision, error) {
	h, err := c.commits(ctx, file)
	if err != nil {
		return Unknown, err
	}
	if len(h) == 0 {
		return Unknown, nil
	}
	return Revision(len(h)), nil
}

// Diff returns `git diff` of the file between the two revisions.
func (c *Git) Diff(ctx context.Context, file File, from, to Revision) (string, error) {
	h, err := c.commits(ctx, file)
	if err != nil {
		return "", err
	}
	a, err := c.object(h, file, from)
	if err != nil {
		return "", err
	}
	b, err := c.object(h, file, to)
	if err != nil {
		return "", err
	}

	out, err := c.runner.Run(ctx, file.Root, c.binary, "diff", "--no-color", "--no-ext-diff", "--no-renames", a, b, "--", file.Path)
	if err != nil {
		return "", &dbsync.RevisionError{
			Op:   "git diff",
			File: file.Path,
			From: int64(from),
			To:   int64(to),
			Err:  fmt.Errorf("%w: %v", dbsync.ErrRevisionUnavailable, err),
		}
	}
	return string(out), nil
}

// RevisionsBetween returns every revision in the range, since each derived
// revision is by construction a commit that changed the file.
func (c *Git) RevisionsBetween(ctx context.Context, file File, fromExclusive, toInclusive Revision) ([]Revision, error) {
	h, err := c.commits(ctx, file)
	if err != nil {
		return nil, err
	}
	if int(toInclusive) > len(h) {
		return nil, &dbsync.RevisionError{
			Op:   "git log",
			File: file.Path,
			From: int64(fromExclusive),
			To:   int64(toInclusive),
			Err:  fmt.Errorf("%w: file has %d revisions", dbsync.ErrRevisionUnavailable, len(h)),
		}
	}

	var revs []Revision
	for r := max(fromExclusive+1, 1); r <= toInclusive; r++ {
		revs = append(revs, r)
	}
	return revs, nil
}
