package domain

import (
	"github.com/go-playground/validator/v10"

	"github.com/victornm/listenup/internal/errors"
)

var validate = validator.New()

// Options narrows which questions a trivia provider returns. Zero values mean "any".
type Options struct {
	Type       string `json:"type" validate:"omitempty,oneof=multiple boolean"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Category   int    `json:"category" validate:"omitempty,min=9,max=32"`
}

func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid options: %v", err),
			errors.WithCause(err),
		)
	}
	return nil
}

// Choice is a human readable label for an option value.
type Choice[T comparable] struct {
	Label string `json:"label"`
	Value T      `json:"value"`
}

var (
	QuestionTypes = []Choice[string]{
		{"Multiple Choice", "multiple"},
		{"True or False", "boolean"},
	}

	Difficulties = []Choice[string]{
		{"Easy", "easy"},
		{"Medium", "medium"},
		{"Hard", "hard"},
	}

	Categories = []Choice[int]{
		{"General Knowledge", 9},
		{"Entertainment, Books", 10},
		{"Entertainment, Film", 11},
		{"Entertainment, Music", 12},
		{"Entertainment, Musicals & Theatres", 13},
		{"Entertainment, Television", 14},
		{"Entertainment, Video Games", 15},
		{"Entertainment, Board Games", 16},
		{"Science & Nature", 17},
		{"Science, Computers", 18},
		{"Science, Mathematics", 19},
		{"Mythology", 20},
		{"Sports", 21},
		{"Geography", 22},
		{"History", 23},
		{"Politics", 24},
		{"Art", 25},
		{"Celebrities", 26},
		{"Animals", 27},
		{"Vehicles", 28},
		{"Entertainment, Comics", 29},
		{"Science, Gadgets", 30},
		{"Entertainment, Japanese Anime & Manga", 31},
		{"Entertainment, Cartoon & Animations", 32},
	}
)
