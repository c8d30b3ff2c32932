package store

import (
	"context"
	"database/sql"
	"embed"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const defaultMaxOpenConns = 10

// SQLStore implements Store over database/sql for every supported dialect.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.Logger
}

// Open connects to the configured database and sizes the pool. The pool is
// meant to be opened once per process.
func Open(ctx context.Context, cfg DBConfig) (*SQLStore, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN(dialect))
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", dialect)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(0)

	if dialect == DialectSQLite {
		// One long-lived connection: pragmas are per connection and a second
		// writer would hit SQLITE_BUSY inside transactions.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close() //nolint:errcheck
				return nil, eris.Wrapf(err, "store: exec %s", pragma)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "store: ping %s", dialect)
	}

	return New(db, dialect), nil
}

// New wraps an existing pool.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, log: zap.L().Named("store")}
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the store's SQL flavor.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Migrate applies the embedded schema for the dialect. Every statement is
// idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	raw, err := schemaFS.ReadFile("schema/" + string(s.dialect) + ".sql")
	if err != nil {
		return eris.Wrapf(err, "store: read schema for %s", s.dialect)
	}
	for i, stmt := range splitStatements(string(raw)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "store: migrate statement %d", i+1)
		}
	}
	s.log.Info("store: schema applied", zap.String("dialect", string(s.dialect)))
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// splitStatements splits a schema file on semicolons that end a line.
func splitStatements(schema string) []string {
	var out []string
	for _, part := range strings.Split(schema, ";\n") {
		if p := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";")); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *SQLStore) q(query string) string {
	return s.dialect.Rebind(query)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}
