package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"
)

// OpenOptions control how Open waits for the database to come up.
type OpenOptions struct {
	MaxRetries   uint64
	InitialDelay time.Duration
}

// DefaultOpenOptions waits roughly half a minute in total.
var DefaultOpenOptions = OpenOptions{MaxRetries: 5, InitialDelay: time.Second}

// Open opens a connection pool for the dialect and pings it with exponential
// backoff until it answers or the retries are exhausted.
func Open(ctx context.Context, d Dialect, dsn string, opts OpenOptions) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	if d == SQLite {
		// a single writer avoids SQLITE_BUSY on concurrent requests
		db.SetMaxOpenConns(1)
	}

	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.InitialDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}

	return db, nil
}
