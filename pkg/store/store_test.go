package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pthm/dbsync"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a new database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDialectForDriver(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
		err    bool
	}{
		{driver: "pgx", want: DialectPostgres},
		{driver: "postgres", want: DialectPostgres},
		{driver: "mysql", want: DialectMySQL},
		{driver: "sqlite", want: DialectSQLite},
		{driver: "sqlite3", want: DialectSQLite},
		{driver: "oracle", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectForDriver(tt.driver)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialect_Quote(t *testing.T) {
	assert.Equal(t, `"dbsync_version"`, DialectPostgres.Quote("dbsync_version"))
	assert.Equal(t, `"public"."dbsync_version"`, DialectPostgres.Quote("public.dbsync_version"))
	assert.Equal(t, `"we""ird"`, DialectSQLite.Quote(`we"ird`))
	assert.Equal(t, "`app`.`params`", DialectMySQL.Quote("app.params"))
}

func TestNewSQLStore_Queries(t *testing.T) {
	s := NewSQLStore(Config{})
	assert.Equal(t, `SELECT "value" FROM "dbsync_version" WHERE "name" = $1`, s.getQuery)
	assert.Equal(t, `UPDATE "dbsync_version" SET "value" = $1 WHERE "name" = $2`, s.setQuery)
	assert.Equal(t, DefaultKey, s.Config().Key)

	s = NewSQLStore(Config{Dialect: DialectMySQL, Table: "params", KeyColumn: "k", ValueColumn: "v", Key: "DB_VERSION"})
	assert.Equal(t, "SELECT `v` FROM `params` WHERE `k` = ?", s.getQuery)
	assert.Equal(t, "UPDATE `params` SET `v` = ? WHERE `k` = ?", s.setQuery)
}

func TestSQLStore_InitGetSet(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	s := NewSQLStore(Config{Dialect: DialectSQLite})

	_, err := s.Get(ctx, db)
	require.Error(t, err)

	created, err := s.Init(ctx, db, 1417)
	require.NoError(t, err)
	assert.True(t, created)

	// A second Init leaves the row alone.
	created, err = s.Init(ctx, db, 1)
	require.NoError(t, err)
	assert.False(t, created)

	v, err := s.Get(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1417), v)

	require.NoError(t, s.Set(ctx, db, 1532))
	v, err = s.Get(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1532), v)
}

func TestSQLStore_VersionNotFound(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	s := NewSQLStore(Config{Dialect: DialectSQLite})
	_, err := db.ExecContext(ctx, `CREATE TABLE dbsync_version (name TEXT PRIMARY KEY, value TEXT)`)
	require.NoError(t, err)

	_, err = s.Get(ctx, db)
	assert.True(t, dbsync.IsVersionNotFoundErr(err))

	_, err = db.ExecContext(ctx, `INSERT INTO dbsync_version (name, value) VALUES ('schema_version', NULL)`)
	require.NoError(t, err)
	_, err = s.Get(ctx, db)
	assert.True(t, dbsync.IsVersionNotFoundErr(err))
}

func TestSQLStore_UpdateConflict(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	s := NewSQLStore(Config{Dialect: DialectSQLite})
	_, err := db.ExecContext(ctx, `CREATE TABLE dbsync_version (name TEXT, value TEXT)`)
	require.NoError(t, err)

	err = s.Set(ctx, db, 10)
	require.Error(t, err)
	assert.True(t, dbsync.IsVersionUpdateConflictErr(err))

	var ve *dbsync.VersionError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, int64(1), ve.Expected)
	assert.Equal(t, int64(0), ve.Actual)

	_, err = db.ExecContext(ctx, `INSERT INTO dbsync_version VALUES ('schema_version', '1'), ('schema_version', '1')`)
	require.NoError(t, err)
	err = s.Set(ctx, db, 10)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, int64(2), ve.Actual)
}

func TestSQLStore_CustomQueries(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE ocn_grupo_parametro (id_grupo_parametro INTEGER PRIMARY KEY, nome_grupo TEXT)`,
		`CREATE TABLE ocn_parametro_configuracao (id_grupo_parametro INTEGER, parametro TEXT, valor TEXT)`,
		`INSERT INTO ocn_grupo_parametro VALUES (7, 'mfc')`,
		`INSERT INTO ocn_parametro_configuracao VALUES (7, 'MFC_VERSAO_BD', '1500')`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	const group = `id_grupo_parametro = (SELECT id_grupo_parametro FROM ocn_grupo_parametro WHERE nome_grupo = 'mfc')`
	s := NewSQLStore(Config{
		Dialect:  DialectSQLite,
		Key:      "MFC_VERSAO_BD",
		GetQuery: `SELECT valor FROM ocn_parametro_configuracao WHERE ` + group + ` AND parametro = ?`,
		SetQuery: `UPDATE ocn_parametro_configuracao SET valor = ? WHERE ` + group + ` AND parametro = ?`,
	})

	v, err := s.Get(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), v)

	require.NoError(t, s.Set(ctx, db, 1532))
	v, err = s.Get(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1532), v)

	_, err = s.Init(ctx, db, 0)
	require.Error(t, err)
}

func TestSQLStore_Transactional(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	s := NewSQLStore(Config{Dialect: DialectSQLite})
	_, err := s.Init(ctx, db, 5)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, tx, 9))
	require.NoError(t, tx.Rollback())

	v, err := s.Get(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}
