package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/internal/auth/store/drivers/sqldb"
)

// Store is the SQLite driver.
type Store struct {
	*sqldb.Store
}

// Options tunes the connection pool. The zero value is fine.
type Options struct {
	MaxOpenConns int
}

// connParams are applied to every pooled connection. Timestamps are written
// in SQLite's own sortable layout so that range predicates compare them
// correctly as text.
var connParams = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_txlock=immediate",
	"_time_format=sqlite",
}

// NewStore opens dsn (a file path or ":memory:").
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithOptions(dsn, Options{})
}

func NewStoreWithOptions(dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", withParams(dsn))
	if err != nil {
		return nil, err
	}

	switch {
	case isMemory(dsn):
		// Every new connection to :memory: is a new, empty database.
		db.SetMaxOpenConns(1)
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	return &Store{Store: sqldb.NewStore(db, sqldb.SQLite, mapError)}, nil
}

func withParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(connParams, "&")
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Join(store.ErrAlreadyExists, err)
		}
	}
	return err
}
