package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/membership"
)

// Repository persists content. Implementations must enforce uniqueness of the semantic key
// (question text, artist+title) and report a rejected duplicate as (false, nil).
type Repository interface {
	ListIDs(ctx context.Context, v domain.Variant) ([]uint32, error)
	InsertQuestion(ctx context.Context, q *domain.Question) (bool, error)
	InsertSong(ctx context.Context, s *domain.Song) (bool, error)
	GetQuestion(ctx context.Context, id uint32) (*domain.Question, error)
	GetSong(ctx context.Context, id uint32) (*domain.Song, error)
	SetMediaRef(ctx context.Context, v domain.Variant, id uint32, ref string) error
}

type Config struct {
	Repo Repository
}

// Store is the single gateway for content mutation. It keeps, per variant, the set of stored
// ids and the highest assigned id in memory, loaded from the repository on first use.
type Store struct {
	repo   Repository
	shards map[domain.Variant]*shard
}

type shard struct {
	mu     sync.RWMutex
	loaded bool
	ids    *membership.Set
	maxID  uint32
}

func NewStore(c Config) *Store {
	s := &Store{
		repo:   c.Repo,
		shards: make(map[domain.Variant]*shard, len(domain.Variants)),
	}

	for _, v := range domain.Variants {
		s.shards[v] = &shard{ids: membership.New()}
	}

	return s
}

// Load fills the membership cache of every variant from the repository.
func (s *Store) Load(ctx context.Context) error {
	for _, v := range domain.Variants {
		if _, err := s.shard(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// InsertQuestion stores q under the next question id unless a question with the same text exists.
// On success q.ID is set and ok is true.
func (s *Store) InsertQuestion(ctx context.Context, q *domain.Question) (id uint32, ok bool, err error) {
	id, ok, err = s.insertUnique(ctx, domain.VariantQuestion, func(id uint32) (bool, error) {
		c := *q
		c.ID = id
		return s.repo.InsertQuestion(ctx, &c)
	})
	if ok {
		q.ID = id
	}
	return id, ok, err
}

// InsertSong stores song under the next song id unless a song with the same artist and title exists.
func (s *Store) InsertSong(ctx context.Context, song *domain.Song) (id uint32, ok bool, err error) {
	id, ok, err = s.insertUnique(ctx, domain.VariantSong, func(id uint32) (bool, error) {
		c := *song
		c.ID = id
		return s.repo.InsertSong(ctx, &c)
	})
	if ok {
		song.ID = id
	}
	return id, ok, err
}

// Insert stores an unsaved item of either variant.
func (s *Store) Insert(ctx context.Context, item domain.Item) (uint32, bool, error) {
	switch it := item.(type) {
	case *domain.Question:
		return s.InsertQuestion(ctx, it)
	case *domain.Song:
		return s.InsertSong(ctx, it)
	default:
		return 0, false, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unsupported content %T", item))
	}
}

// insertUnique allocates the next id and persists under the variant lock, so that ids are
// gap-free and concurrent inserts of one key cannot both succeed.
func (s *Store) insertUnique(ctx context.Context, v domain.Variant, insert func(id uint32) (bool, error)) (uint32, bool, error) {
	sh, err := s.shard(ctx, v)
	if err != nil {
		return 0, false, err
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	id := sh.maxID + 1
	ok, err := insert(id)
	if err != nil {
		return 0, false, fmt.Errorf("content: insert %s %d: %w", v, id, err)
	}
	if !ok {
		return 0, false, nil
	}

	sh.ids.Insert(id)
	sh.maxID = id
	return id, true, nil
}

// Get returns the stored item with id.
func (s *Store) Get(ctx context.Context, v domain.Variant, id uint32) (domain.Item, error) {
	switch v {
	case domain.VariantQuestion:
		return s.Question(ctx, id)
	case domain.VariantSong:
		return s.Song(ctx, id)
	default:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown variant %s", v))
	}
}

func (s *Store) Question(ctx context.Context, id uint32) (*domain.Question, error) {
	if err := s.mustContain(ctx, domain.VariantQuestion, id); err != nil {
		return nil, err
	}
	return s.repo.GetQuestion(ctx, id)
}

func (s *Store) Song(ctx context.Context, id uint32) (*domain.Song, error) {
	if err := s.mustContain(ctx, domain.VariantSong, id); err != nil {
		return nil, err
	}
	return s.repo.GetSong(ctx, id)
}

// MaxID returns the highest id assigned for v; ok is false when nothing is stored yet.
func (s *Store) MaxID(ctx context.Context, v domain.Variant) (id uint32, ok bool, err error) {
	sh, err := s.shard(ctx, v)
	if err != nil {
		return 0, false, err
	}

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return sh.maxID, sh.maxID > 0, nil
}

// IDs returns a snapshot of the ids stored for v. The caller owns the returned set.
func (s *Store) IDs(ctx context.Context, v domain.Variant) (*membership.Set, error) {
	sh, err := s.shard(ctx, v)
	if err != nil {
		return nil, err
	}

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return sh.ids.Clone(), nil
}

// Contains reports whether id is stored for v.
func (s *Store) Contains(ctx context.Context, v domain.Variant, id uint32) (bool, error) {
	sh, err := s.shard(ctx, v)
	if err != nil {
		return false, err
	}

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return sh.ids.Contains(id), nil
}

// SetMediaRef records where the synthesized audio of item lives.
func (s *Store) SetMediaRef(ctx context.Context, item domain.Item, ref string) error {
	if err := s.mustContain(ctx, item.Kind(), item.ItemID()); err != nil {
		return err
	}

	if err := s.repo.SetMediaRef(ctx, item.Kind(), item.ItemID(), ref); err != nil {
		return fmt.Errorf("content: set media ref: %w", err)
	}
	return nil
}

func (s *Store) mustContain(ctx context.Context, v domain.Variant, id uint32) error {
	ok, err := s.Contains(ctx, v, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: id=%d", v, id))
	}
	return nil
}

func (s *Store) shard(ctx context.Context, v domain.Variant) (*shard, error) {
	sh, ok := s.shards[v]
	if !ok {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown variant %s", v))
	}

	sh.mu.RLock()
	loaded := sh.loaded
	sh.mu.RUnlock()
	if loaded {
		return sh, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.loaded {
		return sh, nil
	}

	ids, err := s.repo.ListIDs(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("content: load %s ids: %w", v, err)
	}

	sh.ids = membership.New(ids...)
	sh.maxID, _ = sh.ids.Max()
	sh.loaded = true

	return sh, nil
}
