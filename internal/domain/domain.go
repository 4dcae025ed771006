package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/victornm/listenup/internal/membership"
)

// Variant is a kind of content.
type Variant int8

const (
	VariantQuestion Variant = iota + 1
	VariantSong
)

// Variants lists every content kind.
var Variants = []Variant{VariantQuestion, VariantSong}

func (v Variant) String() string {
	switch v {
	case VariantQuestion:
		return "question"
	case VariantSong:
		return "song"
	default:
		return fmt.Sprintf("variant(%d)", v)
	}
}

// Item is a stored piece of content. Items are immutable once stored,
// except for MediaRef which is filled in lazily.
type Item interface {
	ItemID() uint32
	Kind() Variant
	// Filename is the base name of the synthesized audio file.
	Filename() string
	// Text is what gets read aloud.
	Text() string
	MediaRef() string
}

// Question is a trivia question.
type Question struct {
	ID         uint32
	Prompt     string
	Answer     string
	Choices    []string
	Type       string
	Difficulty string
	Category   string
	Media      string
}

func (q *Question) ItemID() uint32   { return q.ID }
func (q *Question) Kind() Variant    { return VariantQuestion }
func (q *Question) MediaRef() string { return q.Media }

func (q *Question) Filename() string {
	return fmt.Sprintf("%d. %s", q.ID, q.Prompt)
}

func (q *Question) Text() string {
	var b strings.Builder
	b.WriteString(q.Prompt)
	for i, c := range q.Choices {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c)
	}
	return b.String()
}

// Song is a song unlocked as a reward.
type Song struct {
	ID     uint32
	Artist string
	Title  string
	Lyrics string
	Media  string
}

func (s *Song) ItemID() uint32   { return s.ID }
func (s *Song) Kind() Variant    { return VariantSong }
func (s *Song) MediaRef() string { return s.Media }

func (s *Song) Filename() string {
	return fmt.Sprintf("%d. %s - %s", s.ID, s.Artist, s.Title)
}

func (s *Song) Text() string { return s.Lyrics }

// RawQuestion is a question as returned by a trivia provider.
type RawQuestion struct {
	Question         string
	CorrectAnswer    string
	IncorrectAnswers []string
	Type             string
	Difficulty       string
	Category         string
}

// NewQuestion builds an unsaved question. The correct answer is the first choice.
func NewQuestion(r RawQuestion) *Question {
	choices := make([]string, 0, len(r.IncorrectAnswers)+1)
	choices = append(choices, r.CorrectAnswer)
	choices = append(choices, r.IncorrectAnswers...)

	return &Question{
		Prompt:     r.Question,
		Answer:     r.CorrectAnswer,
		Choices:    choices,
		Type:       r.Type,
		Difficulty: r.Difficulty,
		Category:   r.Category,
	}
}

// RawSong is a song as returned by a lyrics provider.
type RawSong struct {
	Artist string
	Title  string
	Lyrics string
}

func NewSong(r RawSong) *Song {
	return &Song{
		Artist: r.Artist,
		Title:  r.Title,
		Lyrics: r.Lyrics,
	}
}

// User is a player and their persisted progress.
type User struct {
	ID                int64
	Username          string
	PasswordHash      []byte
	Points            int
	ConsumedQuestions *membership.Set
	ConsumedSongs     *membership.Set
	CreateTime        time.Time
}

// Consumed returns the user's consumption set for v.
func (u *User) Consumed(v Variant) *membership.Set {
	switch v {
	case VariantQuestion:
		return u.ConsumedQuestions
	case VariantSong:
		return u.ConsumedSongs
	default:
		return membership.New()
	}
}

// Session is the ephemeral state of one game. It does not need to survive restarts.
type Session struct {
	SessionID      string    `json:"session_id"`
	UserID         int64     `json:"user_id"`
	LastQuestionID uint32    `json:"last_question_id,omitempty"`
	StartPoints    int       `json:"start_points"`
	WinThreshold   int       `json:"win_threshold"`
	Options        Options   `json:"options"`
	CreateTime     time.Time `json:"create_time"`
}

// GamePoints returns the points earned since the session (round) started.
func (s *Session) GamePoints(points int) int {
	return points - s.StartPoints
}

// HasWon reports whether a user with the given total points has won this round.
func (s *Session) HasWon(points int) bool {
	return s.GamePoints(points) > s.WinThreshold
}

// Score is a user's total points, used by the leaderboard.
type Score struct {
	Username   string
	Points     int
	UpdateTime time.Time
}

// Leaderboard lists users by points in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Username string
	Points   int
}
