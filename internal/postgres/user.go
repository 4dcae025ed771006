package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/membership"
)

const userColumns = `id, username, password_hash, points, consumed_questions, consumed_songs, create_time`

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ConsumedQuestions == nil {
		u.ConsumedQuestions = membership.New()
	}
	if u.ConsumedSongs == nil {
		u.ConsumedSongs = membership.New()
	}

	questions, songs, err := marshalSets(u)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO users (username, password_hash, points, consumed_questions, consumed_songs)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, create_time;`

	err = s.db.QueryRow(ctx, stmt, u.Username, u.PasswordHash, u.Points, questions, songs).Scan(&u.ID, &u.CreateTime)
	if constraint, ok := uniqueViolation(err); ok && constraint == constraintUsername {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("username %q already exists", u.Username),
			errors.WithCause(err))
	}

	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id)

	u, err := scanUser(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: id=%d", id))
	}

	return u, err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1;`, username)

	u, err := scanUser(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("username %q doesn't exist", username))
	}

	return u, err
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, hash []byte) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2, update_time = now() WHERE id = $1;`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: id=%d", id))
	}

	return nil
}

// UpdateUser locks the user row for the duration of fn, so concurrent requests of one user
// apply one after another.
func (s *Store) UpdateUser(ctx context.Context, id int64, fn func(u *domain.User) error) (_ *domain.User, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE;`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: id=%d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	if err = fn(u); err != nil {
		return nil, err
	}

	questions, songs, err := marshalSets(u)
	if err != nil {
		return nil, err
	}

	const stmt = `
UPDATE users
SET points = $2, consumed_questions = $3, consumed_songs = $4, update_time = now()
WHERE id = $1;`

	if _, err = tx.Exec(ctx, stmt, id, u.Points, questions, songs); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u         domain.User
		questions []byte
		songs     []byte
	)

	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Points, &questions, &songs, &u.CreateTime); err != nil {
		return nil, err
	}

	var err error
	if u.ConsumedQuestions, err = membership.Parse(questions); err != nil {
		return nil, fmt.Errorf("user %d consumed questions: %w", u.ID, err)
	}
	if u.ConsumedSongs, err = membership.Parse(songs); err != nil {
		return nil, fmt.Errorf("user %d consumed songs: %w", u.ID, err)
	}

	return &u, nil
}

func marshalSets(u *domain.User) (questions, songs []byte, err error) {
	if questions, err = u.ConsumedQuestions.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if songs, err = u.ConsumedSongs.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return questions, songs, nil
}
