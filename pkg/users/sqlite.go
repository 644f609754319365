package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // cgo-free sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email      TEXT NOT NULL UNIQUE,
	firstname  TEXT,
	lastname   TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`

// SQLiteStore is a Directory backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Directory = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the users table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply users schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// GetByEmail returns the user for the canonical email, or ErrNotFound.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, firstname, lastname, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// Create inserts a user row for email. A duplicate insert (e.g. two first
// logins racing) is resolved by the unique constraint: the existing row is
// returned.
func (s *SQLiteStore) Create(ctx context.Context, email string) (*User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email) VALUES (?) ON CONFLICT(email) DO NOTHING`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to read back created user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return &u, nil
}
