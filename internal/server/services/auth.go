// Package services contains server-side business logic. This file implements
// AuthService, which handles registration, login and profile updates.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/dmitrijs2005/taskauth/internal/server/metrics"
	"github.com/dmitrijs2005/taskauth/internal/server/models"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/repomanager"
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Claims    *auth.Claims
}

// ProfileUpdate carries the optional fields of UpdateProfile. Empty strings
// leave the stored value untouched.
type ProfileUpdate struct {
	FullName string
	Email    string
	Password string
}

// AuthService provides the account operations:
//   - Register: create users with fresh credential material
//   - Login: check ban state and password, then mint a bearer token
//   - UpdateProfile: change name, email or password
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	tokens      *auth.TokenCodec
	logger      logging.Logger
	metrics     metrics.Recorder
}

// NewAuthService wires AuthService to its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, h *auth.Hasher, tc *auth.TokenCodec, l logging.Logger, r metrics.Recorder) *AuthService {
	if r == nil {
		r = metrics.Nop{}
	}
	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      h,
		tokens:      tc,
		logger:      l.With("service", "auth"),
		metrics:     r,
	}
}

// Register creates a user and returns its id. No token is issued.
func (s *AuthService) Register(ctx context.Context, email, fullName, password string) (id int64, err error) {
	defer func() { s.metrics.AuthEvent("register", outcome(err)) }()

	repo := s.repomanager.Users(s.db)

	exists, err := repo.ExistsByEmail(ctx, email, 0)
	if err != nil {
		return 0, s.internal(ctx, "error checking email", err)
	}
	if exists {
		return 0, common.ErrEmailInUse
	}

	salt, digest, err := s.hasher.NewCredential(password)
	if err != nil {
		return 0, s.internal(ctx, "error deriving credential", err)
	}

	u, err := repo.Insert(ctx, &models.User{
		Email:        email,
		FullName:     fullName,
		Salt:         salt,
		PasswordHash: digest,
	})
	if err != nil {
		// a concurrent registration won the race past the existence check
		if errors.Is(err, common.ErrEmailInUse) {
			return 0, common.ErrEmailInUse
		}
		return 0, s.internal(ctx, "error creating user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u.ID, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password both yield ErrInvalidCredentials; a banned account yields
// ErrAccountBanned before the password is checked.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("login", outcome(err)) }()

	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "error looking up user", err)
	}

	if user.Banned {
		s.logger.Warn(ctx, "login attempt on banned account", "user_id", user.ID)
		return nil, common.ErrAccountBanned
	}

	ok, err := s.hasher.VerifyEncoded(password, user.PasswordHash, user.Salt)
	if err != nil {
		return nil, s.internal(ctx, "stored credential unreadable", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	roles, err := s.repomanager.Roles(s.db).ListRoleNames(ctx, user.ID)
	if err != nil {
		return nil, s.internal(ctx, "error listing roles", err)
	}

	token, claims, err := s.tokens.Issue(user.ID, user.Email, roles)
	if err != nil {
		return nil, s.internal(ctx, "error issuing token", err)
	}

	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt, Claims: claims}, nil
}

// UpdateProfile applies the non-empty fields of upd to the user. Tokens
// already issued keep their old claims until they expire.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (err error) {
	defer func() { s.metrics.AuthEvent("update_profile", outcome(err)) }()

	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return s.internal(ctx, "error looking up user", err)
	}

	if upd.FullName != "" {
		user.FullName = upd.FullName
	}

	if upd.Email != "" {
		exists, err := repo.ExistsByEmail(ctx, upd.Email, userID)
		if err != nil {
			return s.internal(ctx, "error checking email", err)
		}
		if exists {
			return common.ErrEmailInUse
		}
		user.Email = upd.Email
	}

	if upd.Password != "" {
		salt, digest, err := s.hasher.NewCredential(upd.Password)
		if err != nil {
			return s.internal(ctx, "error deriving credential", err)
		}
		user.Salt = salt
		user.PasswordHash = digest
	}

	if err := repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, common.ErrEmailInUse):
			return common.ErrEmailInUse
		case errors.Is(err, common.ErrorNotFound):
			return common.ErrUserNotFound
		}
		return s.internal(ctx, "error updating user", err)
	}

	s.logger.Info(ctx, "profile updated", "user_id", userID)
	return nil
}

// internal logs the underlying failure and marks it as ErrorInternal.
func (s *AuthService) internal(ctx context.Context, msg string, err error) error {
	s.logger.Error(ctx, msg, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, msg, err)
}
