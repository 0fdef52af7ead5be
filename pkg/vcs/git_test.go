package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/dbsync"
)

// gitRepo creates a repository in a temp dir and commits each content in turn
// to changes.sql.
func gitRepo(t *testing.T, contents ...string) File {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
			"GIT_CONFIG_NOSYSTEM=1", "HOME="+dir,
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	git("init", "-q")
	for i, c := range contents {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "changes.sql"), []byte(c), 0o644))
		git("add", "changes.sql")
		git("commit", "-q", "-m", "change "+Revision(i+1).String())

		// An unrelated commit must not shift revision numbers.
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte(c), 0o644))
		git("add", "README")
		git("commit", "-q", "-m", "readme")
	}
	return File{Path: "changes.sql", Root: dir}
}

func TestGit_Revisions(t *testing.T) {
	file := gitRepo(t, "a\n", "a\nb\n", "a\nb\nc\n")
	c := NewGit(GitOptions{})
	ctx := context.Background()

	latest, err := c.LatestRevision(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, Revision(3), latest)

	revs, err := c.RevisionsBetween(ctx, file, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []Revision{2, 3}, revs)

	revs, err = c.RevisionsBetween(ctx, file, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []Revision{1, 2, 3}, revs)

	_, err = c.RevisionsBetween(ctx, file, 0, 4)
	assert.True(t, dbsync.IsRevisionUnavailableErr(err))
}

func TestGit_Diff(t *testing.T) {
	file := gitRepo(t, "a\n", "a\nb\n")
	c := NewGit(GitOptions{})
	ctx := context.Background()

	d, err := c.Diff(ctx, file, 1, 2)
	require.NoError(t, err)
	assert.Contains(t, d, "\n+b\n")
	assert.NotContains(t, d, "\n+a\n")

	// Revision 0 is the empty tree.
	d, err = c.Diff(ctx, file, 0, 2)
	require.NoError(t, err)
	assert.Contains(t, d, "\n+a\n")
	assert.Contains(t, d, "\n+b\n")

	_, err = c.Diff(ctx, file, 0, 9)
	require.Error(t, err)
	assert.True(t, dbsync.IsRevisionUnavailableErr(err))
}

func TestGit_UntrackedFile(t *testing.T) {
	file := gitRepo(t, "a\n")
	file.Path = "missing.sql"

	latest, err := NewGit(GitOptions{}).LatestRevision(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, Unknown, latest)
}

func TestGit_HistoryCached(t *testing.T) {
	calls := 0
	r := RunnerFunc(func(_ context.Context, _, _ string, args ...string) ([]byte, error) {
		calls++
		return []byte("c1\nc2\n"), nil
	})
	c := NewGit(GitOptions{Runner: r})
	file := File{Path: "changes.sql"}

	for i := 0; i < 3; i++ {
		latest, err := c.LatestRevision(context.Background(), file)
		require.NoError(t, err)
		assert.Equal(t, Revision(2), latest)
	}
	assert.Equal(t, 1, calls)
}
