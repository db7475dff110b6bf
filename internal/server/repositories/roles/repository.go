// Package roles is the role half of the directory: the role catalogue and
// the user_roles assignment relation.
package roles

import (
	"context"

	"github.com/dmitrijs2005/taskauth/internal/server/models"
)

type Repository interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
	// Ensure creates the role if it does not exist yet and returns it.
	Ensure(ctx context.Context, name string) (*models.Role, error)
	// ReplaceRole deletes every assignment of userID and inserts one for
	// roleID. Callers run it inside a transaction.
	ReplaceRole(ctx context.Context, userID, roleID int64) error
	ListRoleNames(ctx context.Context, userID int64) ([]string, error)
	HasRole(ctx context.Context, userID, roleID int64) (bool, error)
	CountUsersWithRole(ctx context.Context, roleID int64) (int64, error)
}
