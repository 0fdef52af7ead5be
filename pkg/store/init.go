package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	ddl "github.com/pthm/dbsync/sql"
)

var templates = template.Must(template.ParseFS(ddl.FS, "*.tpl.sql"))

type ddlData struct {
	Table       string
	KeyColumn   string
	ValueColumn string
}

func (s *SQLStore) render(name string) (string, error) {
	d := s.cfg.Dialect
	data := ddlData{
		Table:       d.Quote(s.cfg.Table),
		KeyColumn:   d.Quote(s.cfg.KeyColumn),
		ValueColumn: d.Quote(s.cfg.ValueColumn),
	}

	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, d.String()+"."+name, data); err != nil {
		return "", fmt.Errorf("rendering %s %s DDL: %w", d, name, err)
	}
	return sb.String(), nil
}

// DDL returns the statements Init runs: the CREATE TABLE and the seed INSERT.
func (s *SQLStore) DDL() (create, seed string, err error) {
	if s.cfg.Custom() {
		return "", "", fmt.Errorf("version table DDL is not available with custom queries")
	}
	if create, err = s.render("create"); err != nil {
		return "", "", err
	}
	if seed, err = s.render("seed"); err != nil {
		return "", "", err
	}
	return create, seed, nil
}

// Init creates the version table if missing and seeds the row with version
// unless it already exists. It reports whether the row was inserted.
func (s *SQLStore) Init(ctx context.Context, db DB, version int64) (bool, error) {
	create, seed, err := s.DDL()
	if err != nil {
		return false, err
	}

	if _, err := db.ExecContext(ctx, create); err != nil {
		return false, fmt.Errorf("creating version table %s: %w", s.cfg.Table, err)
	}

	res, err := db.ExecContext(ctx, seed, s.cfg.Key, strconv.FormatInt(version, 10))
	if err != nil {
		return false, fmt.Errorf("seeding version %q: %w", s.cfg.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seeding version %q: %w", s.cfg.Key, err)
	}
	return n == 1, nil
}
