package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server"
	"github.com/dmitrijs2005/taskauth/internal/server/config"
	"github.com/dmitrijs2005/taskauth/internal/server/services"
)

// Bootstrapper is the subset of services.Bootstrap the commands use.
type Bootstrapper interface {
	Status(ctx context.Context) (*services.BootstrapStatus, error)
	BootstrapAdmin(ctx context.Context, email, fullName, password string, force bool) (int64, error)
}

type App struct {
	bootstrap Bootstrapper
	db        *sql.DB
	reader    *bufio.Reader
	out       io.Writer
}

// NewApp connects to the database configured in c, applies migrations and
// seeds the default roles.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stderr, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	db, rm, err := server.OpenStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	svc, err := server.NewServices(ctx, db, rm, c, logger, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		bootstrap: svc.Bootstrap,
		db:        db,
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
