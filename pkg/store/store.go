// Package store reads and writes the schema version recorded in the target
// database.
//
// The version is a single integer kept as text in one row of a parameter
// table, so existing configuration tables can be reused:
//
//	s := store.NewSQLStore(store.Config{
//	    Table:       "ocn_parametro_configuracao",
//	    KeyColumn:   "parametro",
//	    ValueColumn: "valor",
//	    Key:         "MFC_VERSAO_BD",
//	})
//	v, err := s.Get(ctx, tx)
//
// Both operations run on whatever DB handle is passed in, typically the
// transaction of the sync run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pthm/dbsync"
)

// DB is the subset of *sql.DB, *sql.Tx and *sql.Conn the store needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// VersionStore gets and sets the database version.
type VersionStore interface {
	// Get returns the recorded version, or ErrVersionNotFound.
	Get(ctx context.Context, db DB) (int64, error)

	// Set records v. It fails with ErrVersionUpdateConflict unless exactly
	// one row was updated.
	Set(ctx context.Context, db DB, v int64) error
}

// Defaults for Config.
const (
	DefaultTable       = "dbsync_version"
	DefaultKeyColumn   = "name"
	DefaultValueColumn = "value"
	DefaultKey         = "schema_version"
)

// Config describes where the version lives.
type Config struct {
	Dialect     Dialect
	Table       string
	KeyColumn   string
	ValueColumn string
	Key         string

	// GetQuery replaces the generated SELECT. It must return one column and
	// receives Key as its only argument, or no argument when Key is empty.
	GetQuery string

	// SetQuery replaces the generated UPDATE. It receives the new value as
	// text followed by Key (when not empty).
	SetQuery string
}

func (c Config) withDefaults() Config {
	if c.Dialect == "" {
		c.Dialect = DialectPostgres
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.KeyColumn == "" {
		c.KeyColumn = DefaultKeyColumn
	}
	if c.ValueColumn == "" {
		c.ValueColumn = DefaultValueColumn
	}
	if c.Key == "" && c.GetQuery == "" && c.SetQuery == "" {
		c.Key = DefaultKey
	}
	return c
}

// Custom reports whether the store uses caller-supplied queries.
func (c Config) Custom() bool {
	return c.GetQuery != "" || c.SetQuery != ""
}

// SQLStore is a VersionStore backed by a single row of a table.
type SQLStore struct {
	cfg      Config
	getQuery string
	setQuery string
}

var _ VersionStore = (*SQLStore)(nil)

// NewSQLStore creates a store. Zero fields of cfg take the package defaults.
func NewSQLStore(cfg Config) *SQLStore {
	cfg = cfg.withDefaults()
	d := cfg.Dialect

	s := &SQLStore{cfg: cfg, getQuery: cfg.GetQuery, setQuery: cfg.SetQuery}
	if s.getQuery == "" {
		s.getQuery = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			d.Quote(cfg.ValueColumn), d.Quote(cfg.Table), d.Quote(cfg.KeyColumn), d.Placeholder(1))
	}
	if s.setQuery == "" {
		s.setQuery = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
			d.Quote(cfg.Table), d.Quote(cfg.ValueColumn), d.Placeholder(1), d.Quote(cfg.KeyColumn), d.Placeholder(2))
	}
	return s
}

// Config returns the effective configuration.
func (s *SQLStore) Config() Config { return s.cfg }

func (s *SQLStore) keyArgs() []any {
	if s.cfg.Key == "" {
		return nil
	}
	return []any{s.cfg.Key}
}

// Get reads the version.
func (s *SQLStore) Get(ctx context.Context, db DB) (int64, error) {
	var raw sql.NullString
	err := db.QueryRowContext(ctx, s.getQuery, s.keyArgs()...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return 0, fmt.Errorf("reading version %q from %s: %w", s.cfg.Key, s.cfg.Table, dbsync.ErrVersionNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("reading version %q from %s: %w", s.cfg.Key, s.cfg.Table, err)
	}

	v, err := strconv.ParseInt(strings.TrimSpace(raw.String), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", raw.String, err)
	}
	return v, nil
}

// Set writes the version.
func (s *SQLStore) Set(ctx context.Context, db DB, v int64) error {
	args := append([]any{strconv.FormatInt(v, 10)}, s.keyArgs()...)
	res, err := db.ExecContext(ctx, s.setQuery, args...)
	if err != nil {
		return fmt.Errorf("updating version %q to %d: %w", s.cfg.Key, v, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating version %q to %d: %w", s.cfg.Key, v, err)
	}
	if n != 1 {
		return &dbsync.VersionError{
			Op:       fmt.Sprintf("updating version %q to %d", s.cfg.Key, v),
			Expected: 1,
			Actual:   n,
			Err:      dbsync.ErrVersionUpdateConflict,
		}
	}
	return nil
}
