package store

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Dialect identifies the SQL flavor behind a database/sql pool.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectPostgres  Dialect = "postgres"
	DialectSQLite    Dialect = "sqlite"
)

// ParseDialect validates a configured driver name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectSQLServer, DialectPostgres, DialectSQLite:
		return d, nil
	case "mssql":
		return DialectSQLServer, nil
	case "pgx", "postgresql":
		return DialectPostgres, nil
	default:
		return "", eris.Errorf("store: unsupported database driver %q", s)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectSQLite:
		return "sqlite"
	default:
		return "sqlserver"
	}
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d == DialectSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		if d == DialectPostgres {
			b.WriteString("$")
		} else {
			b.WriteString("@p")
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// InsertReturningID builds an INSERT that yields the new identity column.
func (d Dialect) InsertReturningID(table string, cols []string) string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	colList := strings.Join(cols, ", ")
	if d == DialectSQLServer {
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)", table, colList, ph)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, colList, ph)
}

// Insert builds a plain INSERT.
func Insert(table string, cols []string) string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), ph)
}

// DBConfig holds connection settings.
type DBConfig struct {
	Driver                 string `yaml:"driver" mapstructure:"driver"`
	Server                 string `yaml:"server" mapstructure:"server"`
	Port                   int    `yaml:"port" mapstructure:"port"`
	Name                   string `yaml:"name" mapstructure:"name"`
	User                   string `yaml:"user" mapstructure:"user"`
	Password               string `yaml:"password" mapstructure:"password"`
	Encrypt                bool   `yaml:"encrypt" mapstructure:"encrypt"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate" mapstructure:"trust_server_certificate"`
	Path                   string `yaml:"path" mapstructure:"path"`
	MaxOpenConns           int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

// DSN renders the connection string for the dialect.
func (c DBConfig) DSN(d Dialect) string {
	switch d {
	case DialectSQLite:
		if c.Path == "" {
			return "onboard.db"
		}
		return c.Path
	case DialectPostgres:
		port := c.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Server, port),
			Path:   "/" + c.Name,
		}
		q := url.Values{}
		if c.Encrypt {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
		u.RawQuery = q.Encode()
		return u.String()
	default:
		port := c.Port
		if port == 0 {
			port = 1433
		}
		u := url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Server, port),
		}
		q := url.Values{}
		q.Set("database", c.Name)
		q.Set("encrypt", strconv.FormatBool(c.Encrypt))
		q.Set("TrustServerCertificate", strconv.FormatBool(c.TrustServerCertificate))
		u.RawQuery = q.Encode()
		return u.String()
	}
}
