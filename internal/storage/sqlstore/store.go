// Package sqlstore implements storage.Store on database/sql.
//
// The SQL is written once with '?' placeholders; a Dialect adapts it to the
// concrete driver (SQLite or PostgreSQL).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmynk/roomledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name identifies the dialect in logs.
	Name string

	// Numbered rewrites '?' placeholders as $1, $2, ... (PostgreSQL).
	Numbered bool

	// LockClause is appended to the room select inside a transaction,
	// e.g. " FOR UPDATE". Empty when the transaction itself is exclusive.
	LockClause string

	// SeqColumn is a monotonically increasing column used to order rows
	// inserted within the same second.
	SeqColumn string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool

	// TxOptions are passed to BeginTx.
	TxOptions *sql.TxOptions
}

// Store implements storage.Store for any Dialect.
type Store struct {
	raw     *sql.DB
	db      queryer
	dialect Dialect
}

// New wraps an open, migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		raw:     db,
		db:      rebinder{q: db, numbered: dialect.Numbered},
		dialect: dialect,
	}
}

// DB exposes the underlying handle for tests and migrations.
func (s *Store) DB() *sql.DB {
	return s.raw
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.raw.Close()
}

// InTx runs fn inside a transaction. The transaction commits if fn returns
// nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.raw.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{q: rebinder{q: tx, numbered: s.dialect.Numbered}, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebinder rewrites placeholders before delegating to q.
type rebinder struct {
	q        queryer
	numbered bool
}

func (r rebinder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.rebind(query), args...)
}

func (r rebinder) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.rebind(query), args...)
}

func (r rebinder) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.rebind(query), args...)
}

func (r rebinder) rebind(query string) string {
	if !r.numbered {
		return query
	}
	return Rebind(query)
}

// Rebind converts '?' placeholders to PostgreSQL's $N form.
// Queries in this package never contain '?' inside string literals.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
