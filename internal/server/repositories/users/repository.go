// Package users is the account half of the directory: user records with
// their credential material and ban flag.
package users

import (
	"context"

	"github.com/dmitrijs2005/taskauth/internal/server/models"
)

// Repository stores user records. Find methods return common.ErrorNotFound
// when nothing matches; writes that collide on email return
// common.ErrEmailInUse.
type Repository interface {
	Insert(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// ExistsByEmail ignores the row with excludeID; pass 0 to check all rows.
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
}
