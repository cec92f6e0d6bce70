package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/internal/auth/store/drivers/sqldb"
)

// uniqueViolation is SQLSTATE unique_violation.
const uniqueViolation = "23505"

// Store is the PostgreSQL driver, going through pgx's database/sql adapter.
type Store struct {
	*sqldb.Store
}

type Options struct {
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
}

// NewStore opens a pool for the given postgres:// URL and checks it is
// reachable.
func NewStore(ctx context.Context, url string, opts Options) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{Store: sqldb.NewStore(db, sqldb.Postgres, mapError)}, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(store.ErrAlreadyExists, err)
	}
	return err
}
