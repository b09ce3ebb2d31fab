// Package repomanager opens the account store named by a DSN, runs its
// schema migrations and hands out the repository bound to it.
package repomanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/identityd/internal/server/repositories/accounts"
)

var ErrUnsupportedDSN = errors.New("unsupported database dsn")

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Accounts() accounts.Repository
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from the DSN scheme:
//
//	postgres://, postgresql://   PostgreSQL via pgx
//	sqlite://<path>, file:...    SQLite via modernc.org/sqlite
//	memory://                    in-process store
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresRepositoryManager(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteRepositoryManager(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return NewSQLiteRepositoryManager(ctx, dsn)
	case strings.HasPrefix(dsn, "memory://"):
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
	}
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	if len(dsn) > 8 {
		return dsn[:8] + "..."
	}
	return dsn
}
