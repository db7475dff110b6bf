package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/taskauth/internal/dbx"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/dmitrijs2005/taskauth/internal/server/config"
	"github.com/dmitrijs2005/taskauth/internal/server/metrics"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskauth/internal/server/services"
)

// Services groups the account services sharing one database handle.
type Services struct {
	Tokens     *auth.TokenCodec
	Auth       *services.AuthService
	Moderation *services.ModerationService
	Bootstrap  *services.Bootstrap
}

// OpenStorage connects to the configured database, waiting for it to come
// up, and applies the schema migrations.
func OpenStorage(ctx context.Context, cfg *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	d, err := dbx.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}

	db, err := dbx.Open(ctx, d, cfg.DatabaseDSN, dbx.DefaultOpenOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLRepositoryManager(d)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}

	return db, rm, nil
}

// NewServices builds the service layer and seeds the default roles.
// A nil recorder disables auth metrics.
func NewServices(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, l logging.Logger, r metrics.Recorder) (*Services, error) {
	tc := auth.NewTokenCodec(cfg.SecretKey, cfg.Issuer, cfg.Audience, cfg.TokenLifetime, nil)

	as := services.NewAuthService(db, rm, auth.NewHasher(), tc, l, r)
	ms := services.NewModerationService(db, rm, l, r)
	bs := services.NewBootstrap(db, rm, as, ms, l)

	if err := bs.SeedRoles(ctx); err != nil {
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	return &Services{Tokens: tc, Auth: as, Moderation: ms, Bootstrap: bs}, nil
}
