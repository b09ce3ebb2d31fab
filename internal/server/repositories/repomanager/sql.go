package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/identityd/internal/server/migrations"
	"github.com/dmitrijs2005/identityd/internal/server/repositories/accounts"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlManager is shared by the database/sql backed managers.
type sqlManager struct {
	db           *sql.DB
	accounts     *accounts.SQLRepository
	gooseDialect string
	migrationDir string
}

func openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// RunMigrations sets up goose with the embedded migrations for the dialect
// and applies them.
func (m *sqlManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.gooseDialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, m.migrationDir); err != nil {
		return err
	}
	return nil
}

func (m *sqlManager) Accounts() accounts.Repository {
	return m.accounts
}

func (m *sqlManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *sqlManager) Close() error {
	return m.db.Close()
}

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct {
	sqlManager
}

func newPostgresManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{sqlManager{
		db:           db,
		accounts:     accounts.NewPostgresRepository(db),
		gooseDialect: "pgx",
		migrationDir: migrations.PostgresDir,
	}}
}

// NewPostgresRepositoryManager connects with the pgx database/sql driver.
func NewPostgresRepositoryManager(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := openDB(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return newPostgresManager(db), nil
}

// SQLiteRepositoryManager vends SQLite-backed repositories.
type SQLiteRepositoryManager struct {
	sqlManager
}

func newSQLiteManager(db *sql.DB) *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{sqlManager{
		db:           db,
		accounts:     accounts.NewSQLiteRepository(db),
		gooseDialect: "sqlite3",
		migrationDir: migrations.SQLiteDir,
	}}
}

// NewSQLiteRepositoryManager opens path with modernc.org/sqlite. SQLite
// allows one writer, so the pool is limited to a single connection.
func NewSQLiteRepositoryManager(ctx context.Context, path string) (*SQLiteRepositoryManager, error) {
	db, err := openDB(ctx, "sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return newSQLiteManager(db), nil
}
