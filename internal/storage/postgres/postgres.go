// Package postgres provides a PostgreSQL-backed implementation of the storage.Store interface.
package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	migrate "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/mmynk/roomledger/internal/storage"
	"github.com/mmynk/roomledger/internal/storage/sqlstore"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

// Ensure PostgresStore implements storage.Store
var _ storage.Store = (*PostgresStore)(nil)

// Dialect is the PostgreSQL flavour of the shared SQL store.
// Transactions run at READ COMMITTED and serialize on the room row lock.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Numbered:          true,
	LockClause:        " FOR UPDATE",
	SeqColumn:         "seq",
	IsUniqueViolation: isUniqueViolation,
	TxOptions:         &sql.TxOptions{Isolation: sql.LevelReadCommitted},
}

// PostgresStore implements storage.Store using PostgreSQL.
type PostgresStore struct {
	*sqlstore.Store
}

// New connects to the database at url and applies pending migrations.
func New(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is not reachable: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{Store: sqlstore.New(db, Dialect)}, nil
}

// runMigrations applies the embedded migrations, tolerating ErrNoChange.
func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migration files: %w", err)
	}

	driver, err := migratePostgres.WithInstance(db, &migratePostgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Postgres migrations applied")
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
