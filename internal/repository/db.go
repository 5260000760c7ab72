package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"provsurvey/internal/model"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// OpenSQL opens a database and ensures the answers table exists
func OpenSQL(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:survey.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/survey?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, model.NewStorageError("open database", err)
	}
	if driver == DriverSQLite {
		// one writer keeps the delete+insert transactions from hitting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, model.NewStorageError("ping database", err)
	}
	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, model.NewStorageError("ensure schema", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	schema := schemaSQLite
	if driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uid TEXT NOT NULL,
  question TEXT NOT NULL,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE (uid, question, field)
);

CREATE INDEX IF NOT EXISTS answers_uid ON answers (uid);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS answers (
  id BIGSERIAL PRIMARY KEY,
  uid TEXT NOT NULL,
  question TEXT NOT NULL,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (uid, question, field)
);

CREATE INDEX IF NOT EXISTS answers_uid ON answers (uid);
`

func sortedKeys(fields model.Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
