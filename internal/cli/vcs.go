package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/vcs"
)

// VCS backend kinds.
const (
	KindSVN = "svn"
	KindGit = "git"
)

// ChangelogFile resolves the changelog file, preferring path over
// changelog.path. Commands run in the file's directory, so relative and
// absolute paths both work regardless of the current directory.
func (c *Config) ChangelogFile(path string) (vcs.File, error) {
	if path == "" {
		path = c.Changelog.Path
	}
	if path == "" {
		return vcs.File{}, fmt.Errorf("changelog path is required (use --changelog or set changelog.path)")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return vcs.File{}, fmt.Errorf("resolving changelog path: %w", err)
	}
	return vcs.File{Path: filepath.Base(abs), Root: filepath.Dir(abs)}, nil
}

// VCSClient builds the configured version control client.
func (c *Config) VCSClient() (vcs.Client, error) {
	switch strings.ToLower(c.VCS.Kind) {
	case "", KindSVN:
		return vcs.NewSVN(vcs.SVNOptions{Binary: c.VCS.Binary, ExtraArgs: []string{"--non-interactive"}}), nil
	case KindGit:
		return vcs.NewGit(vcs.GitOptions{Binary: c.VCS.Binary}), nil
	default:
		return nil, fmt.Errorf("unsupported vcs.kind %q (want svn or git)", c.VCS.Kind)
	}
}

// MaterializerOptions returns the changelog settings for the planner.
func (c *Config) MaterializerOptions() changelog.Options {
	return changelog.Options{
		HeaderLines:   c.Changelog.HeaderLines,
		BlankRevision: vcs.Revision(c.Changelog.BlankRevision),
	}
}
