package progress

import (
	"context"
	"time"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/event"
)

// Repository persists user progress.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// UpdateUser runs fn on the current user state and persists the points and consumption sets
	// it leaves behind in one transaction. Concurrent updates of the same user are serialized.
	// Nothing is persisted if fn returns an error.
	UpdateUser(ctx context.Context, id int64, fn func(u *domain.User) error) (*domain.User, error)
}

// Catalog tells whether content exists.
type Catalog interface {
	Contains(ctx context.Context, v domain.Variant, id uint32) (bool, error)
}

type Config struct {
	Repo     Repository
	Catalog  Catalog
	EventBus *event.Bus
}

// Ledger records what each user has consumed and the points they earned.
type Ledger struct {
	repo    Repository
	catalog Catalog
	eb      *event.Bus
}

func NewLedger(c Config) *Ledger {
	return &Ledger{
		repo:    c.Repo,
		catalog: c.Catalog,
		eb:      c.EventBus,
	}
}

// CompleteQuestion awards one point for q and marks it consumed. A question can only be
// completed once per user; a replay fails with CodeAlreadyExists and leaves points unchanged.
func (l *Ledger) CompleteQuestion(ctx context.Context, userID int64, q *domain.Question) (*domain.User, error) {
	if err := l.mustExist(ctx, q); err != nil {
		return nil, err
	}

	u, err := l.repo.UpdateUser(ctx, userID, func(u *domain.User) error {
		if u.ConsumedQuestions.Contains(q.ID) {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("question already completed: user=%d question=%d", userID, q.ID))
		}

		u.Points++
		u.ConsumedQuestions.Insert(q.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if l.eb != nil {
		l.eb.Publish(ctx, domain.EventPointsAwarded{
			Score: domain.Score{
				Username:   u.Username,
				Points:     u.Points,
				UpdateTime: time.Now(),
			},
			QuestionID: q.ID,
		})
	}

	return u, nil
}

// RecordSongPlay marks song consumed. Playing a song again is not an error.
func (l *Ledger) RecordSongPlay(ctx context.Context, userID int64, song *domain.Song) (*domain.User, error) {
	if err := l.mustExist(ctx, song); err != nil {
		return nil, err
	}

	return l.repo.UpdateUser(ctx, userID, func(u *domain.User) error {
		u.ConsumedSongs.Insert(song.ID)
		return nil
	})
}

// HasWon reports whether u has earned more than the session's threshold since the session started.
func (l *Ledger) HasWon(u *domain.User, s *domain.Session) bool {
	return s.HasWon(u.Points)
}

// mustExist keeps every consumption set a subset of the stored content.
func (l *Ledger) mustExist(ctx context.Context, item domain.Item) error {
	ok, err := l.catalog.Contains(ctx, item.Kind(), item.ItemID())
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: id=%d", item.Kind(), item.ItemID()))
	}
	return nil
}
