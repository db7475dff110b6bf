package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/taskauth/internal/dbx"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/roles"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so that services can
// use the same code path with a pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Roles(db dbx.DBTX) roles.Repository
}
