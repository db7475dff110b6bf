package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/dbx"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/metrics"
	"github.com/dmitrijs2005/taskauth/internal/server/models"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/repomanager"
	"github.com/patrickmn/go-cache"
)

const (
	roleCacheTTL     = 10 * time.Minute
	roleCacheCleanup = 30 * time.Minute
)

// ModerationService implements the administrative account operations. Callers
// are expected to have passed the Admin gate already.
type ModerationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	roles       *cache.Cache
	logger      logging.Logger
	metrics     metrics.Recorder
}

func NewModerationService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, r metrics.Recorder) *ModerationService {
	if r == nil {
		r = metrics.Nop{}
	}
	return &ModerationService{
		db:          db,
		repomanager: m,
		roles:       cache.New(roleCacheTTL, roleCacheCleanup),
		logger:      l.With("service", "moderation"),
		metrics:     r,
	}
}

// Ban marks the user as banned. Tokens issued earlier stay valid until they
// expire; new logins are refused.
func (s *ModerationService) Ban(ctx context.Context, userID int64) (u *models.User, err error) {
	defer func() { s.metrics.AuthEvent("ban", outcome(err)) }()
	return s.setBanned(ctx, userID, true)
}

// Unban clears the banned flag.
func (s *ModerationService) Unban(ctx context.Context, userID int64) (u *models.User, err error) {
	defer func() { s.metrics.AuthEvent("unban", outcome(err)) }()
	return s.setBanned(ctx, userID, false)
}

func (s *ModerationService) setBanned(ctx context.Context, userID int64, banned bool) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Banned == banned {
		if banned {
			return nil, common.ErrAlreadyBanned
		}
		return nil, common.ErrNotBanned
	}

	user.Banned = banned
	if err := repo.Update(ctx, user); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, s.internal(ctx, "error updating user", err)
	}

	s.logger.Info(ctx, "ban state changed", "user_id", userID, "banned", banned)
	return user, nil
}

// AssignRole makes roleName the only role of the user. Every user holds at
// most one role: existing assignments are removed and the new one is inserted
// in the same transaction.
func (s *ModerationService) AssignRole(ctx context.Context, userID int64, roleName string) (u *models.User, err error) {
	defer func() { s.metrics.AuthEvent("assign_role", outcome(err)) }()

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	role, err := s.lookupRole(ctx, roleName)
	if err != nil {
		return nil, err
	}

	has, err := s.repomanager.Roles(s.db).HasRole(ctx, userID, role.ID)
	if err != nil {
		return nil, s.internal(ctx, "error checking role", err)
	}
	if has {
		return nil, common.ErrRoleAlreadyAssigned
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Roles(tx).ReplaceRole(ctx, userID, role.ID)
	})
	if err != nil {
		return nil, s.internal(ctx, "error replacing role", err)
	}

	s.logger.Info(ctx, "role assigned", "user_id", userID, "role", role.Name)
	return user, nil
}

func (s *ModerationService) findUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, s.internal(ctx, "error looking up user", err)
	}
	return user, nil
}

// lookupRole resolves a role by name. Misses are not cached.
func (s *ModerationService) lookupRole(ctx context.Context, name string) (*models.Role, error) {
	if v, ok := s.roles.Get(name); ok {
		return v.(*models.Role), nil
	}

	role, err := s.repomanager.Roles(s.db).FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, s.internal(ctx, "error looking up role", err)
	}

	s.roles.SetDefault(name, role)
	return role, nil
}

func (s *ModerationService) internal(ctx context.Context, msg string, err error) error {
	s.logger.Error(ctx, msg, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, msg, err)
}
