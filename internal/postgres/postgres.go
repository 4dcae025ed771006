// Package postgres stores content and users in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation = "23505"

	constraintUsername = "users_username_key"
)

type Config struct {
	DB *pgxpool.Pool
}

// Store implements the content and user repositories.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(c Config) *Store {
	return &Store{db: c.DB}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
