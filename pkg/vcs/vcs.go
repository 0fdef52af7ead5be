// Package vcs provides access to the revision history of a tracked changelog
// file.
//
// A Client exposes three queries: the latest revision of the file, a unified
// diff of the file between two revisions, and the revisions in a range at which
// the file changed. Revisions are integers forming a single linear sequence;
// merges and branches are not considered.
//
// Backends:
//   - SVN drives the svn command-line client. Revisions are repository
//     revision numbers.
//   - Git drives the git command-line client. Revision N is the N-th commit,
//     oldest first, that touched the file; revision 0 is the empty tree.
//   - Memory keeps an in-process history and is intended for tests and
//     embedders that already hold the file contents.
package vcs

import (
	"context"
	"strconv"
)

// Revision identifies a committed state of a tracked file.
type Revision int64

// Unknown is reported by LatestRevision when the backend cannot determine a
// revision for the file.
const Unknown Revision = -1

func (r Revision) String() string {
	return strconv.FormatInt(int64(r), 10)
}

// File is a changelog file tracked in a repository.
//
// Path is the file path, relative to Root when Root is set. Root is the
// working copy (or repository) directory commands run in; empty means the
// current directory.
type File struct {
	Path string
	Root string
}

func (f File) String() string {
	return f.Path
}

// Client answers history queries for a tracked file.
type Client interface {
	// LatestRevision returns the most recent revision of file, or Unknown.
	LatestRevision(ctx context.Context, file File) (Revision, error)

	// Diff returns the unified diff of file from revision from to revision to.
	// An empty string means the revisions have identical content.
	Diff(ctx context.Context, file File, from, to Revision) (string, error)

	// RevisionsBetween returns, in ascending order, the revisions in
	// (fromExclusive, toInclusive] at which file changed.
	RevisionsBetween(ctx context.Context, file File, fromExclusive, toInclusive Revision) ([]Revision, error)
}
