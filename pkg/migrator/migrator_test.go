package migrator

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

func openDB(t *testing.T, version int64) (*sql.DB, *store.SQLStore) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s := store.NewSQLStore(store.Config{Dialect: store.DialectSQLite})
	_, err = s.Init(context.Background(), db, version)
	require.NoError(t, err)
	return db, s
}

func version(t *testing.T, db *sql.DB, s store.VersionStore) int64 {
	t.Helper()
	v, err := s.Get(context.Background(), db)
	require.NoError(t, err)
	return v
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func twoBlockPlan() *changelog.Plan {
	return &changelog.Plan{
		File: vcs.File{Path: "changes.sql"},
		From: 10,
		To:   60,
		Blocks: []changelog.Block{
			{SQL: "CREATE TABLE a (id INTEGER);\nINSERT INTO a VALUES (1);\n\n", From: 10, To: 50, Mode: changelog.ModeDiff},
			{SQL: "CREATE TABLE IF NOT EXISTS b (id INTEGER);\n\n", From: 60, To: 60, Mode: changelog.ModeSnapshot},
		},
		Boundaries: []changelog.Boundary{{LastStable: 50, FirstChanged: 51}},
	}
}

func TestApply(t *testing.T) {
	db, s := openDB(t, 10)
	m := NewMigrator(s, Options{})

	res, err := m.Apply(context.Background(), db, twoBlockPlan())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Blocks)
	assert.Equal(t, vcs.Revision(60), res.To)

	assert.True(t, tableExists(t, db, "a"))
	assert.True(t, tableExists(t, db, "b"))
	assert.Equal(t, int64(60), version(t, db, s))
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	db, s := openDB(t, 10)
	m := NewMigrator(s, Options{})

	plan := twoBlockPlan()
	plan.Blocks[1].SQL = "CREATE TABLE b (id INTEGER;\n\n"

	_, err := m.Apply(context.Background(), db, plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot@60 of changes.sql")

	assert.False(t, tableExists(t, db, "a"))
	assert.Equal(t, int64(10), version(t, db, s))
}

func TestApply_CallerManagedTransaction(t *testing.T) {
	db, s := openDB(t, 10)
	m := NewMigrator(s, Options{})
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = m.Apply(ctx, tx, twoBlockPlan())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.False(t, tableExists(t, db, "a"))
	assert.Equal(t, int64(10), version(t, db, s))
}

type recordingStore struct {
	gets, sets int
	v          int64
}

func (r *recordingStore) Get(context.Context, store.DB) (int64, error) {
	r.gets++
	return r.v, nil
}

func (r *recordingStore) Set(_ context.Context, _ store.DB, v int64) error {
	r.sets++
	r.v = v
	return nil
}

func TestApply_EmptyPlan(t *testing.T) {
	db, _ := openDB(t, 10)
	rs := &recordingStore{v: 10}
	m := NewMigrator(rs, Options{})

	res, err := m.Apply(context.Background(), db, &changelog.Plan{From: 10, To: 10})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, ReasonUpToDate, res.Reason)
	assert.Zero(t, rs.sets)
}

func TestApply_NeverDecreasesVersion(t *testing.T) {
	db, _ := openDB(t, 10)
	rs := &recordingStore{v: 60}
	m := NewMigrator(rs, Options{})

	_, err := m.Apply(context.Background(), db, &changelog.Plan{From: 60, To: 10})
	require.Error(t, err)
	assert.True(t, dbsync.IsVersionAheadErr(err))
	assert.Zero(t, rs.sets)
}

func TestApply_MarkOnly(t *testing.T) {
	db, s := openDB(t, 10)
	m := NewMigrator(s, Options{MarkOnly: true})

	res, err := m.Apply(context.Background(), db, twoBlockPlan())
	require.NoError(t, err)
	assert.True(t, res.MarkOnly)
	assert.Zero(t, res.Blocks)

	assert.False(t, tableExists(t, db, "a"))
	assert.Equal(t, int64(60), version(t, db, s))
}

func TestApply_DryRun(t *testing.T) {
	db, s := openDB(t, 10)
	var buf bytes.Buffer
	m := NewMigrator(s, Options{DryRun: &buf})

	res, err := m.Apply(context.Background(), db, twoBlockPlan())
	require.NoError(t, err)
	assert.True(t, res.DryRun)

	out := buf.String()
	assert.Contains(t, out, "-- dbsync migration (dry-run)")
	assert.Contains(t, out, "-- Version: 10 -> 60")
	assert.Contains(t, out, "-- Header rewrites (last stable|first changed): 50|51")
	assert.Contains(t, out, "-- Block 1/2: diff 10..50")
	assert.Contains(t, out, "-- Block 2/2: snapshot@60")
	assert.Contains(t, out, "CREATE TABLE a (id INTEGER);")

	assert.False(t, tableExists(t, db, "a"))
	assert.Equal(t, int64(10), version(t, db, s))
}

func TestApply_SkipsBlankBlocks(t *testing.T) {
	db, s := openDB(t, 10)
	m := NewMigrator(s, Options{})

	plan := &changelog.Plan{From: 10, To: 11, Blocks: []changelog.Block{{SQL: "\n \n", From: 10, To: 11}}}
	res, err := m.Apply(context.Background(), db, plan)
	require.NoError(t, err)
	assert.Zero(t, res.Blocks)
	assert.Equal(t, int64(11), version(t, db, s))
}
