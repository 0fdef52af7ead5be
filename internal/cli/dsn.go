package cli

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Driver names registered by the drivers imported in db.go.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// ResolvedDriver returns the database/sql driver to use: database.driver when
// set, otherwise inferred from the URL scheme, defaulting to pgx.
func (c *Config) ResolvedDriver() string {
	if c.Database.Driver != "" {
		return strings.ToLower(c.Database.Driver)
	}
	raw := strings.TrimPrefix(c.Database.URL, "jdbc:")
	switch {
	case strings.HasPrefix(raw, "mysql://"):
		return DriverMySQL
	case strings.HasPrefix(raw, "sqlite://"), strings.HasPrefix(raw, "file:"):
		return DriverSQLite
	case raw != "" && !strings.Contains(raw, "://") && strings.Contains(raw, "@tcp("):
		return DriverMySQL
	default:
		return DriverPgx
	}
}

// DSN returns the connection string for the resolved driver.
//
// If database.url is set it is used as the base, with database.user and
// database.password (when set) replacing any credentials it carries. A
// leading "jdbc:" is accepted and dropped. A PostgreSQL URL without a
// postgres:// scheme is taken as a libpq keyword/value string and passed
// through, with user= and password= appended when set. Otherwise the DSN is
// built from the discrete host/port/name fields.
func (c *Config) DSN() (string, error) {
	switch c.ResolvedDriver() {
	case DriverMySQL:
		return c.mysqlDSN()
	case DriverSQLite:
		return c.sqliteDSN()
	default:
		return c.postgresDSN()
	}
}

func (c *Config) postgresDSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		raw := strings.TrimPrefix(db.URL, "jdbc:")
		if !strings.HasPrefix(raw, "postgres://") && !strings.HasPrefix(raw, "postgresql://") {
			// libpq keyword/value form
			return appendKeywords(raw, db.User, db.Password), nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parsing database.url: %w", err)
		}
		if u.Scheme == "postgresql" {
			u.Scheme = "postgres"
		}
		applyUserinfo(u, db.User, db.Password)
		return u.String(), nil
	}

	// Build DSN from discrete fields
	if err := c.requireDiscrete(); err != nil {
		return "", err
	}

	port := db.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(port)),
		Path:   "/" + db.Name,
	}
	applyUserinfo(u, db.User, db.Password)

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// appendKeywords adds user and password, when set, to a keyword/value DSN.
// Later keywords override earlier ones.
func appendKeywords(dsn, user, password string) string {
	for _, kv := range [][2]string{{"user", user}, {"password", password}} {
		if kv[1] == "" {
			continue
		}
		if dsn != "" {
			dsn += " "
		}
		dsn += kv[0] + "=" + quoteKeyword(kv[1])
	}
	return dsn
}

// quoteKeyword quotes a keyword value when it is empty or holds spaces,
// quotes or backslashes.
func quoteKeyword(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t\n") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func (c *Config) mysqlDSN() (string, error) {
	db := c.Database

	var mc *mysql.Config
	switch {
	case strings.HasPrefix(db.URL, "mysql://"):
		u, err := url.Parse(db.URL)
		if err != nil {
			return "", fmt.Errorf("parsing database.url: %w", err)
		}
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = u.Host
		mc.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			mc.User = u.User.Username()
			mc.Passwd, _ = u.User.Password()
		}
		for k, vs := range u.Query() {
			if mc.Params == nil {
				mc.Params = map[string]string{}
			}
			mc.Params[k] = vs[len(vs)-1]
		}
	case db.URL != "":
		var err error
		if mc, err = mysql.ParseDSN(db.URL); err != nil {
			return "", fmt.Errorf("parsing database.url: %w", err)
		}
	default:
		if err := c.requireDiscrete(); err != nil {
			return "", err
		}
		port := db.Port
		if port == 0 {
			port = 3306
		}
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(db.Host, strconv.Itoa(port))
		mc.DBName = db.Name
	}

	if db.User != "" {
		mc.User = db.User
	}
	if db.Password != "" {
		mc.Passwd = db.Password
	}
	// The version update must report matched rows, not changed rows.
	mc.ClientFoundRows = true
	mc.MultiStatements = true

	return mc.FormatDSN(), nil
}

func (c *Config) sqliteDSN() (string, error) {
	raw := strings.TrimPrefix(c.Database.URL, "sqlite://")
	if raw == "" {
		raw = c.Database.Name
	}
	if raw == "" {
		return "", fmt.Errorf("database.url or database.name is required for sqlite")
	}
	return raw, nil
}

func (c *Config) requireDiscrete() error {
	db := c.Database
	if db.Host == "" {
		return fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return fmt.Errorf("database.user is required when database.url is not set")
	}
	return nil
}

// applyUserinfo overrides the URL credentials with user and password. An empty
// user keeps the URL's own user, and an empty password keeps its password.
func applyUserinfo(u *url.URL, user, password string) {
	if user == "" && password == "" {
		return
	}
	if user == "" && u.User != nil {
		user = u.User.Username()
	}
	if password == "" && u.User != nil {
		password, _ = u.User.Password()
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
}

var keywordPassword = regexp.MustCompile(`(^|\s)password\s*=\s*('(?:[^'\\]|\\.)*'|\S*)`)

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		return keywordPassword.ReplaceAllString(raw, "${1}password=********")
	}
	u, err := url.Parse(strings.TrimPrefix(raw, "jdbc:"))
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "********")
	}
	return u.String()
}

func redactMySQLDSN(raw string) string {
	mc, err := mysql.ParseDSN(raw)
	if err != nil || mc.Passwd == "" {
		return raw
	}
	mc.Passwd = "********"
	return mc.FormatDSN()
}
