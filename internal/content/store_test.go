package content_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/listenup/internal/content"
	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/memory"
)

func TestStore_InsertQuestion(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	id, ok, err := s.InsertQuestion(ctx, question("q1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), id)

	id, ok, err = s.InsertQuestion(ctx, question("q2"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), id)

	id, ok, err = s.InsertQuestion(ctx, question("q1"))
	require.NoError(t, err)
	assert.False(t, ok, "duplicate question text should be rejected")
	assert.Zero(t, id)

	max, found, err := s.MaxID(ctx, domain.VariantQuestion)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(2), max, "rejected duplicate should not consume an id")

	got, err := s.Question(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "q2", got.Prompt)
}

func TestStore_InsertSong(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	_, ok, err := s.InsertSong(ctx, &domain.Song{Artist: "a", Title: "t", Lyrics: "x"})
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.InsertSong(ctx, &domain.Song{Artist: "a", Title: "t", Lyrics: "other lyrics"})
	require.NoError(t, err)
	assert.False(t, ok, "same artist and title is the same song")

	_, ok, err = s.InsertSong(ctx, &domain.Song{Artist: "b", Title: "t"})
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := s.IDs(ctx, domain.VariantSong)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, ids.IDs())

	qids, err := s.IDs(ctx, domain.VariantQuestion)
	require.NoError(t, err)
	assert.True(t, qids.IsEmpty(), "variants have separate id spaces")
}

func TestStore_ConcurrentInsertSameKey(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted []uint32
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ok, err := s.InsertQuestion(ctx, question("same"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted = append(inserted, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []uint32{1}, inserted, "exactly one insert should win")

	ids, err := s.IDs(ctx, domain.VariantQuestion)
	require.NoError(t, err)
	assert.Equal(t, 1, ids.Len())
}

func TestStore_ConcurrentInsertDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.InsertQuestion(ctx, question(fmt.Sprintf("q%d", i)))
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	ids, err := s.IDs(ctx, domain.VariantQuestion)
	require.NoError(t, err)

	want := make([]uint32, n)
	for i := range want {
		want[i] = uint32(i + 1)
	}
	assert.Equal(t, want, ids.IDs(), "ids should be gap-free")
}

func TestStore_MaxIDEmpty(t *testing.T) {
	_, ok, err := makeStore(t).MaxID(context.Background(), domain.VariantSong)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	_, err := s.Get(ctx, domain.VariantQuestion, 9)
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)

	_, err = s.Song(ctx, 1)
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
}

func TestStore_IDsIsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	_, _, err := s.InsertQuestion(ctx, question("q1"))
	require.NoError(t, err)

	snap, err := s.IDs(ctx, domain.VariantQuestion)
	require.NoError(t, err)
	snap.Insert(100)

	ok, err := s.Contains(ctx, domain.VariantQuestion, 100)
	require.NoError(t, err)
	assert.False(t, ok, "mutating a snapshot must not leak into the store")
}

func TestStore_LoadsExistingContent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()

	for i, text := range []string{"a", "b", "c"} {
		q := question(text)
		q.ID = uint32(i + 1)
		ok, err := repo.InsertQuestion(ctx, q)
		require.NoError(t, err)
		require.True(t, ok)
	}

	s := content.NewStore(content.Config{Repo: repo})
	require.NoError(t, s.Load(ctx))

	id, ok, err := s.InsertQuestion(ctx, question("d"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(4), id, "id counter should continue after stored content")

	_, ok, err = s.InsertQuestion(ctx, question("b"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SetMediaRef(t *testing.T) {
	ctx := context.Background()
	s := makeStore(t)

	q := question("q1")
	_, _, err := s.InsertQuestion(ctx, q)
	require.NoError(t, err)

	require.NoError(t, s.SetMediaRef(ctx, q, "trivia/1. q1.wav"))

	got, err := s.Question(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "trivia/1. q1.wav", got.MediaRef())

	err = s.SetMediaRef(ctx, &domain.Song{ID: 5}, "x")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func makeStore(t *testing.T) *content.Store {
	t.Helper()
	return content.NewStore(content.Config{Repo: memory.NewStore()})
}

func question(text string) *domain.Question {
	return domain.NewQuestion(domain.RawQuestion{
		Question:         text,
		CorrectAnswer:    "yes",
		IncorrectAnswers: []string{"no"},
		Type:             "boolean",
		Difficulty:       "easy",
		Category:         "General Knowledge",
	})
}
