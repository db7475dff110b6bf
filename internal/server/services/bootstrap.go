package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/repomanager"
)

// BootstrapStatus describes whether an administrator exists.
type BootstrapStatus struct {
	IsBootstrapped bool
	AdminCount     int64
}

// Bootstrap seeds the role catalogue and creates administrators from the
// command line.
type Bootstrap struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	auth        *AuthService
	moderation  *ModerationService
	logger      logging.Logger
}

func NewBootstrap(db *sql.DB, m repomanager.RepositoryManager, a *AuthService, mod *ModerationService, l logging.Logger) *Bootstrap {
	return &Bootstrap{
		db:          db,
		repomanager: m,
		auth:        a,
		moderation:  mod,
		logger:      l.With("service", "bootstrap"),
	}
}

// SeedRoles makes sure every default role exists. Safe to run on each start.
func (b *Bootstrap) SeedRoles(ctx context.Context) error {
	repo := b.repomanager.Roles(b.db)
	for _, name := range common.DefaultRoles {
		role, err := repo.Ensure(ctx, name)
		if err != nil {
			return fmt.Errorf("error seeding role %s: %w", name, err)
		}
		b.logger.Debug(ctx, "role ready", "role", role.Name, "role_id", role.ID)
	}
	return nil
}

// Status counts the users holding the Admin role.
func (b *Bootstrap) Status(ctx context.Context) (*BootstrapStatus, error) {
	repo := b.repomanager.Roles(b.db)

	admin, err := repo.FindByName(ctx, common.RoleAdmin)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, fmt.Errorf("error looking up admin role: %w", err)
	}

	n, err := repo.CountUsersWithRole(ctx, admin.ID)
	if err != nil {
		return nil, fmt.Errorf("error counting admins: %w", err)
	}

	return &BootstrapStatus{IsBootstrapped: n > 0, AdminCount: n}, nil
}

// BootstrapAdmin registers a user and gives it the Admin role. Unless force
// is set it refuses to run when an administrator already exists.
func (b *Bootstrap) BootstrapAdmin(ctx context.Context, email, fullName, password string, force bool) (int64, error) {
	status, err := b.Status(ctx)
	if err != nil {
		return 0, err
	}
	if status.IsBootstrapped && !force {
		return 0, common.ErrAlreadyBootstrapped
	}

	b.logger.Info(ctx, "creating admin user", "force", force, "existing_admins", status.AdminCount)

	id, err := b.auth.Register(ctx, email, fullName, password)
	if err != nil {
		return 0, err
	}

	if _, err := b.moderation.AssignRole(ctx, id, common.RoleAdmin); err != nil {
		return 0, fmt.Errorf("user %d created but admin role not assigned: %w", id, err)
	}

	return id, nil
}
