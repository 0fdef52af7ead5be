package vcs

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/pthm/dbsync"
)

// SVNOptions configures the SVN client.
type SVNOptions struct {
	// Binary is the svn executable. Defaults to "svn".
	Binary string

	// Runner executes commands. Defaults to ExecRunner.
	Runner Runner

	// ExtraArgs are passed to every svn invocation, e.g. --username or
	// --non-interactive.
	ExtraArgs []string
}

// SVN is a Client backed by the svn command-line client.
//
// Queries are made against the repository (peg revision HEAD), so the working
// copy does not need to be updated before a run.
type SVN struct {
	binary    string
	runner    Runner
	extraArgs []string
}

// NewSVN creates an SVN client.
func NewSVN(opts SVNOptions) *SVN {
	if opts.Binary == "" {
		opts.Binary = "svn"
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &SVN{
		binary:    opts.Binary,
		runner:    opts.Runner,
		extraArgs: opts.ExtraArgs,
	}
}

func (c *SVN) run(ctx context.Context, file File, args ...string) ([]byte, error) {
	full := make([]string, 0, len(args)+len(c.extraArgs)+1)
	full = append(full, args...)
	full = append(full, c.extraArgs...)
	full = append(full, pegHead(file.Path))
	return c.runner.Run(ctx, file.Root, c.binary, full...)
}

// pegHead pins path to the repository HEAD. A trailing @ is always added so
// that paths containing @ are not misread as peg revisions.
func pegHead(path string) string {
	return path + "@HEAD"
}

// LatestRevision returns the last revision in the repository that changed the
// file. Unknown is returned when svn reports no revision.
func (c *SVN) LatestRevision(ctx context.Context, file File) (Revision, error) {
	out, err := c.run(ctx, file, "info", "-r", "HEAD", "--show-item", "last-changed-revision")
	if err != nil {
		return Unknown, fmt.Errorf("svn info %s: %w", file.Path, err)
	}

	s := strings.TrimSpace(string(out))
	if s == "" {
		return Unknown, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Unknown, fmt.Errorf("svn info %s: parsing revision %q: %w", file.Path, s, err)
	}
	return Revision(n), nil
}

// Diff returns `svn diff -r from:to` for the file using svn's internal diff so
// the output is always in unified format.
func (c *SVN) Diff(ctx context.Context, file File, from, to Revision) (string, error) {
	rng := fmt.Sprintf("%d:%d", from, to)
	out, err := c.run(ctx, file, "diff", "--internal-diff", "--ignore-properties", "-r", rng)
	if err != nil {
		return "", &dbsync.RevisionError{
			Op:   "svn diff",
			File: file.Path,
			From: int64(from),
			To:   int64(to),
			Err:  fmt.Errorf("%w: %v", dbsync.ErrRevisionUnavailable, err),
		}
	}
	return svnLabels.ReplaceAllString(string(out), "$1"), nil
}

// svnLabels matches the "(revision N)" labels svn appends to file headers,
// which are not timestamps and confuse unified diff parsers.
var svnLabels = regexp.MustCompile(`(?m)^((?:---|\+\+\+) [^\t\n]*)\t\((?:revision \d+|working copy|nonexistent)\)$`)

type svnLog struct {
	Entries []struct {
		Revision int64 `xml:"revision,attr"`
	} `xml:"logentry"`
}

// RevisionsBetween lists the revisions in (fromExclusive, toInclusive] that
// changed the file, using `svn log --xml`.
func (c *SVN) RevisionsBetween(ctx context.Context, file File, fromExclusive, toInclusive Revision) ([]Revision, error) {
	start := fromExclusive + 1
	if start > toInclusive {
		return nil, nil
	}

	rng := fmt.Sprintf("%d:%d", start, toInclusive)
	out, err := c.run(ctx, file, "log", "--xml", "--quiet", "-r", rng)
	if err != nil {
		return nil, fmt.Errorf("svn log %s: %w", file.Path, err)
	}

	var log svnLog
	if err := xml.Unmarshal(out, &log); err != nil {
		return nil, fmt.Errorf("svn log %s: decoding xml: %w", file.Path, err)
	}

	revs := make([]Revision, 0, len(log.Entries))
	for _, e := range log.Entries {
		revs = append(revs, Revision(e.Revision))
	}
	slices.Sort(revs)
	return revs, nil
}
