package changelog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/vcs"
)

const svnDiff = `Index: alteracoes-db.sql
===================================================================
--- alteracoes-db.sql
+++ alteracoes-db.sql
@@ -1,4 +1,7 @@
 -- changelog
 -- do not edit above this line
 CREATE TABLE a (id int);
+
+-- ticket 42
+ALTER TABLE a ADD COLUMN name text;
-DROP TABLE old;
+
`

func TestAddedLines(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		limit int
		want  string
	}{
		{
			name:  "unbounded",
			raw:   svnDiff,
			limit: Unbounded,
			want:  "\n-- ticket 42\nALTER TABLE a ADD COLUMN name text;\n\n",
		},
		{
			name:  "limited",
			raw:   svnDiff,
			limit: 2,
			want:  "\n-- ticket 42\n",
		},
		{
			name:  "zero limit",
			raw:   svnDiff,
			limit: 0,
			want:  "",
		},
		{
			name:  "empty diff",
			raw:   "",
			limit: Unbounded,
			want:  "",
		},
		{
			name: "git headers",
			raw: "diff --git a/x.sql b/x.sql\nindex 4b825dc..e69de29 100644\n--- a/x.sql\n+++ b/x.sql\n" +
				"@@ -1 +1,3 @@\n a;\n+b;\n+\n",
			limit: Unbounded,
			want:  "b;\n\n",
		},
		{
			name:  "no newline at end",
			raw:   "--- x.sql\n+++ x.sql\n@@ -1 +1,2 @@\n a;\n+b;\n\\ No newline at end of file\n",
			limit: Unbounded,
			want:  "b;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := addedLines([]byte(tt.raw), tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndsWithBlankLine(t *testing.T) {
	assert.True(t, EndsWithBlankLine(""))
	assert.True(t, EndsWithBlankLine("a;\n\n"))
	assert.True(t, EndsWithBlankLine("a;\n  \n"))
	assert.True(t, EndsWithBlankLine("a;\n \n \n"))
	assert.False(t, EndsWithBlankLine("a;\n"))
	assert.False(t, EndsWithBlankLine("a;\n\t\n"))
}

func TestMaterializer_SnapshotAndHeader(t *testing.T) {
	repo := vcs.NewMemory()
	file := vcs.File{Path: "changes.sql"}
	require.NoError(t, repo.CommitAt(file.Path, 10, "-- h1\n-- h2\nA;\n\n"))
	require.NoError(t, repo.CommitAt(file.Path, 20, "-- h1\n-- h2\nA;\n\nB;\n\n"))

	m := NewMaterializer(repo, Options{})
	ctx := context.Background()
	assert.Equal(t, DefaultHeaderLines, m.HeaderLines())

	snap, err := m.Snapshot(ctx, file, 20, Unbounded)
	require.NoError(t, err)
	assert.Equal(t, "-- h1\n-- h2\nA;\n\nB;\n\n", snap)

	h, err := m.Header(ctx, file, 20)
	require.NoError(t, err)
	assert.Equal(t, "-- h1\n-- h2\n", h)

	equal, err := m.HeadersEqual(ctx, file, 10, 20)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestMaterializer_BlankRevision(t *testing.T) {
	repo := vcs.NewMemory()
	file := vcs.File{Path: "changes.sql"}
	require.NoError(t, repo.CommitAt(file.Path, 5, "stale;\n"))
	require.NoError(t, repo.CommitAt(file.Path, 7, ""))
	require.NoError(t, repo.CommitAt(file.Path, 10, "-- h1\n-- h2\nA;\n\n"))

	m := NewMaterializer(repo, Options{BlankRevision: 7, HeaderLines: 1})

	snap, err := m.Snapshot(context.Background(), file, 10, Unbounded)
	require.NoError(t, err)
	assert.Equal(t, "-- h1\n-- h2\nA;\n\n", snap)

	h, err := m.Header(context.Background(), file, 10)
	require.NoError(t, err)
	assert.Equal(t, "-- h1\n", h)
}

func TestMaterializer_Diff(t *testing.T) {
	repo := vcs.NewMemory()
	file := vcs.File{Path: "changes.sql"}
	require.NoError(t, repo.CommitAt(file.Path, 10, "-- h1\n-- h2\nA;\n\n"))
	require.NoError(t, repo.CommitAt(file.Path, 20, "-- h1\n-- h2\nA;\n\nB;\n"))
	require.NoError(t, repo.CommitAt(file.Path, 30, "-- h1\n-- h2\nA;\n\nB;\n\n"))

	m := NewMaterializer(repo, Options{})
	ctx := context.Background()

	_, err := m.Diff(ctx, file, 10, 20, DiffOptions{})
	require.Error(t, err)
	assert.True(t, dbsync.IsTrailingNewlineMissingErr(err))

	sql, err := m.Diff(ctx, file, 10, 20, DiffOptions{Relaxed: true})
	require.NoError(t, err)
	assert.Equal(t, "B;\n", sql)

	sql, err = m.Diff(ctx, file, 10, 30, DiffOptions{})
	require.NoError(t, err)
	assert.Equal(t, "B;\n\n", sql)

	sql, err = m.Diff(ctx, file, 30, 30, DiffOptions{})
	require.NoError(t, err)
	assert.Empty(t, sql)
}

type failingClient struct {
	vcs.Client
	err error
}

func (f failingClient) Diff(context.Context, vcs.File, vcs.Revision, vcs.Revision) (string, error) {
	return "", f.err
}

func TestMaterializer_ClientFailure(t *testing.T) {
	m := NewMaterializer(failingClient{err: errors.New("connection reset")}, Options{})

	_, err := m.Snapshot(context.Background(), vcs.File{Path: "changes.sql"}, 12, Unbounded)
	require.Error(t, err)
	assert.True(t, dbsync.IsRevisionUnavailableErr(err))

	var re *dbsync.RevisionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "changes.sql", re.File)
	assert.Equal(t, int64(0), re.From)
	assert.Equal(t, int64(12), re.To)
	assert.Contains(t, err.Error(), "connection reset")
}
