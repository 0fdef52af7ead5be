package vcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/dbsync"
)

func TestMemory_Commit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	file := File{Path: "changes.sql"}

	latest, err := m.LatestRevision(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, Unknown, latest)

	assert.Equal(t, Revision(1), m.Commit("changes.sql", "a\n"))
	assert.Equal(t, Revision(2), m.Commit("other.sql", "x\n"))
	assert.Equal(t, Revision(3), m.Commit("changes.sql", "a\nb\n"))

	latest, err = m.LatestRevision(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, Revision(3), latest)

	revs, err := m.RevisionsBetween(ctx, file, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []Revision{1, 3}, revs)

	revs, err = m.RevisionsBetween(ctx, file, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestMemory_CommitAt(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CommitAt("changes.sql", 10, "a\n"))
	require.Error(t, m.CommitAt("changes.sql", 10, "b\n"))
	require.Error(t, m.CommitAt("changes.sql", 5, "b\n"))
	assert.Equal(t, Revision(11), m.Commit("changes.sql", "a\nb\n"))
}

func TestMemory_Diff(t *testing.T) {
	m := NewMemory()
	file := File{Path: "changes.sql"}
	require.NoError(t, m.CommitAt(file.Path, 10, "a\nb\n"))
	require.NoError(t, m.CommitAt(file.Path, 20, "a\nb\nc\n"))
	ctx := context.Background()

	d, err := m.Diff(ctx, file, 10, 20)
	require.NoError(t, err)
	assert.Contains(t, d, "+c\n")
	assert.NotContains(t, d, "+a\n")

	// Content between commits is that of the previous commit.
	d, err = m.Diff(ctx, file, 10, 15)
	require.NoError(t, err)
	assert.Empty(t, d)

	d, err = m.Diff(ctx, file, 0, 20)
	require.NoError(t, err)
	assert.Contains(t, d, "+a\n")
	assert.Contains(t, d, "+c\n")
}

func TestMemory_DiffUnavailable(t *testing.T) {
	m := NewMemory()
	file := File{Path: "changes.sql"}
	require.NoError(t, m.CommitAt(file.Path, 10, "a\n"))
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to Revision
	}{
		{name: "before first commit", from: 5, to: 10},
		{name: "after head", from: 10, to: 11},
		{name: "negative", from: -1, to: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Diff(ctx, file, tt.from, tt.to)
			require.Error(t, err)
			assert.True(t, dbsync.IsRevisionUnavailableErr(err))
		})
	}
}
