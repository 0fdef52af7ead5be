package migrator

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/dbsync/internal/testutil"
	"github.com/pthm/dbsync/pkg/changelog"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

func pgTableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestSync_Postgres(t *testing.T) {
	db := testutil.EmptyDB(t)
	ctx := context.Background()

	cfg := store.Config{Dialect: store.DialectPostgres}
	_, err := store.NewSQLStore(cfg).Init(ctx, db, 10)
	require.NoError(t, err)

	res, err := Sync(ctx, db, repo(t), vcs.File{Path: changes}, cfg)
	require.NoError(t, err)
	assert.Equal(t, vcs.Revision(60), res.To)
	assert.Equal(t, 2, res.Blocks)

	for _, name := range []string{"a", "b", "c"} {
		assert.True(t, pgTableExists(t, db, name), name)
	}
	assert.Equal(t, int64(60), version(t, db, store.NewSQLStore(cfg)))
}

func TestSync_PostgresRollsBackDDL(t *testing.T) {
	db := testutil.EmptyDB(t)
	ctx := context.Background()

	cfg := store.Config{Dialect: store.DialectPostgres}
	s := store.NewSQLStore(cfg)
	_, err := s.Init(ctx, db, 10)
	require.NoError(t, err)

	// The snapshot of revision 70 recreates a and fails after b was created.
	r := repo(t)
	require.NoError(t, r.CommitAt(changes, 70, "-- changelog\n-- epoch 3\nCREATE TABLE a (id INTEGER);\n\n"))

	_, err = SyncWithOptions(ctx, db, r, vcs.File{Path: changes}, cfg, changelog.Options{}, Options{})
	require.Error(t, err)
	assert.False(t, pgTableExists(t, db, "b"))
	assert.Equal(t, int64(10), version(t, db, s))
}
