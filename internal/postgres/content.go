package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
)

func (s *Store) ListIDs(ctx context.Context, v domain.Variant) ([]uint32, error) {
	table, err := contentTable(v)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id;`, table))
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (uint32, error) {
		var id int64
		if err := r.Scan(&id); err != nil {
			return 0, err
		}
		return uint32(id), nil
	})
}

// InsertQuestion inserts q unless a question with the same text exists. A clash on the id itself
// means another process allocated it and is reported as an error.
func (s *Store) InsertQuestion(ctx context.Context, q *domain.Question) (bool, error) {
	const stmt = `
INSERT INTO questions (id, question, answer, choices, type, difficulty, category, media_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT questions_question_key DO NOTHING;`

	tag, err := s.db.Exec(ctx, stmt, int64(q.ID), q.Prompt, q.Answer, q.Choices, q.Type, q.Difficulty, q.Category, q.Media)
	if err != nil {
		return false, insertError("questions", q.ID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) InsertSong(ctx context.Context, song *domain.Song) (bool, error) {
	const stmt = `
INSERT INTO songs (id, artist, title, lyrics, media_ref)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT ON CONSTRAINT songs_artist_title_key DO NOTHING;`

	tag, err := s.db.Exec(ctx, stmt, int64(song.ID), song.Artist, song.Title, song.Lyrics, song.Media)
	if err != nil {
		return false, insertError("songs", song.ID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetQuestion(ctx context.Context, id uint32) (*domain.Question, error) {
	const stmt = `
SELECT question, answer, choices, type, difficulty, category, media_ref
FROM questions
WHERE id = $1;`

	q := domain.Question{ID: id}
	err := s.db.QueryRow(ctx, stmt, int64(id)).Scan(&q.Prompt, &q.Answer, &q.Choices, &q.Type, &q.Difficulty, &q.Category, &q.Media)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: id=%d", id))
	}
	if err != nil {
		return nil, err
	}

	return &q, nil
}

func (s *Store) GetSong(ctx context.Context, id uint32) (*domain.Song, error) {
	const stmt = `SELECT artist, title, lyrics, media_ref FROM songs WHERE id = $1;`

	song := domain.Song{ID: id}
	err := s.db.QueryRow(ctx, stmt, int64(id)).Scan(&song.Artist, &song.Title, &song.Lyrics, &song.Media)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("song not found: id=%d", id))
	}
	if err != nil {
		return nil, err
	}

	return &song, nil
}

func (s *Store) SetMediaRef(ctx context.Context, v domain.Variant, id uint32, ref string) error {
	table, err := contentTable(v)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET media_ref = $2 WHERE id = $1;`, table), int64(id), ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: id=%d", v, id))
	}

	return nil
}

func contentTable(v domain.Variant) (string, error) {
	switch v {
	case domain.VariantQuestion:
		return "questions", nil
	case domain.VariantSong:
		return "songs", nil
	default:
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown variant %s", v))
	}
}

// insertError maps a failed content insert. Semantic key clashes never get here, they are
// skipped by ON CONFLICT.
func insertError(table string, id uint32, err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}

	if constraint == table+"_pkey" {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("%s id taken: %d", table, id),
			errors.WithCause(err))
	}

	return errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("%s insert %d violates %s", table, id, constraint),
		errors.WithCause(err))
}
