// Package repomanager opens the user store, runs the embedded goose
// migrations for its dialect, and vends repositories bound to a DBTX.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/windbreaker/internal/dbx"
	"github.com/dmitrijs2005/windbreaker/internal/filex"
	"github.com/dmitrijs2005/windbreaker/internal/server/migrations"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/audit"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends SQL-backed repositories for one dialect.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// NewSQLRepositoryManager constructs a RepositoryManager for dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) RepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect {
	return m.dialect
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

// Audit returns an audit.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewSQLRepository(db, m.dialect)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	dir := string(m.dialect)
	gooseDialect := "sqlite3"
	if m.dialect == dbx.Postgres {
		gooseDialect = "pgx"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return err
	}
	return nil
}

// Open connects to dsn, picking the driver from its shape, and returns the
// handle with a matching manager. Migrations are not applied here.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	dialect := dbx.DialectFromDSN(dsn)

	if dialect == dbx.SQLite && filex.IsSQLiteFile(dsn) {
		if err := filex.EnsureParentDir(dsn); err != nil {
			return nil, nil, err
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == dbx.SQLite {
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases
		// on one connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return db, NewSQLRepositoryManager(dialect), nil
}
