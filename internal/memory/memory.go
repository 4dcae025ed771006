// Package memory keeps content and users in process memory. It backs local runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/membership"
)

type songKey struct {
	artist string
	title  string
}

type Store struct {
	mu sync.Mutex

	questions     map[uint32]domain.Question
	questionTexts map[string]uint32
	songs         map[uint32]domain.Song
	songKeys      map[songKey]uint32

	users     map[int64]domain.User
	usernames map[string]int64
	lastUser  int64
}

func NewStore() *Store {
	return &Store{
		questions:     make(map[uint32]domain.Question),
		questionTexts: make(map[string]uint32),
		songs:         make(map[uint32]domain.Song),
		songKeys:      make(map[songKey]uint32),
		users:         make(map[int64]domain.User),
		usernames:     make(map[string]int64),
	}
}

func (s *Store) ListIDs(_ context.Context, v domain.Variant) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uint32
	switch v {
	case domain.VariantQuestion:
		for id := range s.questions {
			ids = append(ids, id)
		}
	case domain.VariantSong:
		for id := range s.songs {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) InsertQuestion(_ context.Context, q *domain.Question) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questionTexts[q.Prompt]; ok {
		return false, nil
	}
	if _, ok := s.questions[q.ID]; ok {
		return false, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("question id taken: %d", q.ID))
	}

	c := *q
	c.Choices = slices.Clone(q.Choices)
	s.questions[q.ID] = c
	s.questionTexts[q.Prompt] = q.ID
	return true, nil
}

func (s *Store) InsertSong(_ context.Context, song *domain.Song) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := songKey{artist: song.Artist, title: song.Title}
	if _, ok := s.songKeys[k]; ok {
		return false, nil
	}
	if _, ok := s.songs[song.ID]; ok {
		return false, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("song id taken: %d", song.ID))
	}

	s.songs[song.ID] = *song
	s.songKeys[k] = song.ID
	return true, nil
}

func (s *Store) GetQuestion(_ context.Context, id uint32) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: id=%d", id))
	}
	q.Choices = slices.Clone(q.Choices)
	return &q, nil
}

func (s *Store) GetSong(_ context.Context, id uint32) (*domain.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, ok := s.songs[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("song not found: id=%d", id))
	}
	return &song, nil
}

func (s *Store) SetMediaRef(_ context.Context, v domain.Variant, id uint32, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v {
	case domain.VariantQuestion:
		q, ok := s.questions[id]
		if !ok {
			return errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: id=%d", id))
		}
		q.Media = ref
		s.questions[id] = q
	case domain.VariantSong:
		song, ok := s.songs[id]
		if !ok {
			return errors.New(errors.CodeNotFound, errors.WithMessagef("song not found: id=%d", id))
		}
		song.Media = ref
		s.songs[id] = song
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernames[u.Username]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("username %q already exists", u.Username))
	}

	s.lastUser++
	u.ID = s.lastUser
	u.CreateTime = time.Now()
	if u.ConsumedQuestions == nil {
		u.ConsumedQuestions = membership.New()
	}
	if u.ConsumedSongs == nil {
		u.ConsumedSongs = membership.New()
	}

	s.users[u.ID] = cloneUser(*u)
	s.usernames[u.Username] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: id=%d", id))
	}
	c := cloneUser(u)
	return &c, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("username %q doesn't exist", username))
	}
	c := cloneUser(s.users[id])
	return &c, nil
}

func (s *Store) UpdatePassword(_ context.Context, id int64, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: id=%d", id))
	}
	u.PasswordHash = slices.Clone(hash)
	s.users[id] = u
	return nil
}

// UpdateUser applies fn to a copy of the user and keeps the result only if fn succeeds.
// The store lock is held throughout, so updates of one user never interleave.
func (s *Store) UpdateUser(_ context.Context, id int64, fn func(u *domain.User) error) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: id=%d", id))
	}

	c := cloneUser(u)
	if err := fn(&c); err != nil {
		return nil, err
	}

	s.users[id] = cloneUser(c)
	return &c, nil
}

func cloneUser(u domain.User) domain.User {
	u.PasswordHash = slices.Clone(u.PasswordHash)
	u.ConsumedQuestions = u.ConsumedQuestions.Clone()
	u.ConsumedSongs = u.ConsumedSongs.Clone()
	return u
}
