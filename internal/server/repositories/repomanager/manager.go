package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/windbreaker/internal/dbx"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/audit"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/users"
)

type RepositoryManager interface {
	Dialect() dbx.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Audit(db dbx.DBTX) audit.Repository
}
