package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pthm/dbsync/pkg/store"
)

// OpenDB opens and pings the configured database.
func (c *Config) OpenDB(ctx context.Context) (*sql.DB, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, ConfigError("database configuration", err)
	}

	driver := c.ResolvedDriver()
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, DBConnectError("connecting to database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, DBConnectError(fmt.Sprintf("connecting to database (%s)", driver), err)
	}
	return db, nil
}

// StoreConfig returns the version store configuration.
func (c *Config) StoreConfig() (store.Config, error) {
	d, err := store.DialectForDriver(c.ResolvedDriver())
	if err != nil {
		return store.Config{}, err
	}
	v := c.Version
	return store.Config{
		Dialect:     d,
		Table:       v.Table,
		KeyColumn:   v.KeyColumn,
		ValueColumn: v.ValueColumn,
		Key:         v.Key,
		GetQuery:    v.GetQuery,
		SetQuery:    v.SetQuery,
	}, nil
}
