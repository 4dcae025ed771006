package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
)

func TestOptions_Validate(t *testing.T) {
	tests := map[string]struct {
		opts    domain.Options
		wantErr bool
	}{
		"zero value means any":  {opts: domain.Options{}},
		"fully specified":       {opts: domain.Options{Type: "boolean", Difficulty: "hard", Category: 23}},
		"unknown type":          {opts: domain.Options{Type: "essay"}, wantErr: true},
		"unknown difficulty":    {opts: domain.Options{Difficulty: "insane"}, wantErr: true},
		"category out of range": {opts: domain.Options{Category: 33}, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.opts.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestSession_HasWon(t *testing.T) {
	s := domain.Session{StartPoints: 10, WinThreshold: 5}

	assert.False(t, s.HasWon(10))
	assert.False(t, s.HasWon(15), "reaching the threshold is not enough")
	assert.True(t, s.HasWon(16))
	assert.Equal(t, 6, s.GamePoints(16))
}

func TestNewQuestion(t *testing.T) {
	q := domain.NewQuestion(domain.RawQuestion{
		Question:         "2+2?",
		CorrectAnswer:    "4",
		IncorrectAnswers: []string{"3", "5"},
		Type:             "multiple",
		Difficulty:       "easy",
		Category:         "Science: Mathematics",
	})

	assert.Equal(t, []string{"4", "3", "5"}, q.Choices)
	assert.Equal(t, "4", q.Answer)
	assert.Equal(t, domain.VariantQuestion, q.Kind())
	assert.Equal(t, "2+2?\n1. 4\n2. 3\n3. 5", q.Text())
}

func TestSong_Audible(t *testing.T) {
	s := &domain.Song{ID: 4, Artist: "A", Title: "T", Lyrics: "la la"}

	assert.Equal(t, "4. A - T", s.Filename())
	assert.Equal(t, "la la", s.Text())
	assert.Equal(t, domain.VariantSong, s.Kind())
}

func TestUser_Consumed(t *testing.T) {
	u := domain.User{}
	assert.True(t, u.Consumed(domain.Variant(9)).IsEmpty())
}
