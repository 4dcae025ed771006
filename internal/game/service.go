// Package game runs the listen-and-answer quiz: questions until the user crosses the session's
// win threshold, then a song as the reward, then the next round.
package game

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/event"
	"github.com/victornm/listenup/internal/progress"
	"github.com/victornm/listenup/internal/selection"
	"github.com/victornm/listenup/internal/session"
)

const DefaultWinThreshold = 5

type Users interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type Questions interface {
	Question(ctx context.Context, id uint32) (*domain.Question, error)
}

type Selector interface {
	SelectUnseen(ctx context.Context, req selection.SelectRequest) (domain.Item, error)
}

type Materializer interface {
	Materialize(ctx context.Context, item domain.Item) (string, error)
}

type Config struct {
	Users     Users
	Questions Questions
	Sessions  *session.Service
	Selector  Selector
	Ledger    *progress.Ledger
	// Media is optional. Without it no audio is produced.
	Media        Materializer
	EventBus     *event.Bus
	WinThreshold int
}

type Service struct {
	users        Users
	questions    Questions
	sessions     *session.Service
	selector     Selector
	ledger       *progress.Ledger
	media        Materializer
	eb           *event.Bus
	winThreshold int
}

func NewService(c Config) *Service {
	s := &Service{
		users:        c.Users,
		questions:    c.Questions,
		sessions:     c.Sessions,
		selector:     c.Selector,
		ledger:       c.Ledger,
		media:        c.Media,
		eb:           c.EventBus,
		winThreshold: c.WinThreshold,
	}

	if s.winThreshold <= 0 {
		s.winThreshold = DefaultWinThreshold
	}

	return s
}

// Player identifies a user playing in a session.
type Player struct {
	UserID    int64
	SessionID string
}

// Start opens a new session. Points earned before it do not count towards winning it.
func (s *Service) Start(ctx context.Context, userID int64) (*domain.Session, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.sessions.CreateSession(ctx, session.CreateSessionRequest{
		UserID:       u.ID,
		Points:       u.Points,
		WinThreshold: s.winThreshold,
	})
}

func (s *Service) End(ctx context.Context, p Player) error {
	if _, err := s.session(ctx, p); err != nil {
		return err
	}
	return s.sessions.EndSession(ctx, p.SessionID)
}

func (s *Service) SetOptions(ctx context.Context, p Player, opts domain.Options) (*domain.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ss, err := s.session(ctx, p)
	if err != nil {
		return nil, err
	}

	ss.Options = opts
	if err := s.sessions.SaveSession(ctx, ss); err != nil {
		return nil, err
	}

	return ss, nil
}

type Progress struct {
	Points     int
	GamePoints int
	// Goal is the number of game points needed to win.
	Goal int
	Won  bool
}

type NextQuestionResponse struct {
	Progress Progress
	// Question is nil once the user has won the round.
	Question *domain.Question
	// Choices are the question's choices in presentation order.
	Choices  []string
	MediaRef string
}

// NextQuestion presents a question the user has never completed. When the user has already
// won the round it presents nothing and the caller should ask for the reward song.
func (s *Service) NextQuestion(ctx context.Context, p Player) (*NextQuestionResponse, error) {
	ss, u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}

	resp := &NextQuestionResponse{Progress: progressOf(u, ss)}
	if resp.Progress.Won {
		return resp, nil
	}

	item, err := s.selector.SelectUnseen(ctx, selection.SelectRequest{
		Variant:  domain.VariantQuestion,
		Consumed: u.ConsumedQuestions,
		Options:  ss.Options,
	})
	if err != nil {
		return nil, err
	}
	q := item.(*domain.Question)

	ss.LastQuestionID = q.ID
	if err := s.sessions.SaveSession(ctx, ss); err != nil {
		return nil, err
	}

	resp.Question = q
	resp.Choices = shuffle(q.Choices)
	resp.MediaRef = s.materialize(ctx, q)
	return resp, nil
}

type SubmitAnswerResponse struct {
	Correct  bool
	Progress Progress
}

// SubmitAnswer checks answer against the last presented question. A right answer completes the
// question and awards a point. A wrong answer changes nothing and the question stays open.
func (s *Service) SubmitAnswer(ctx context.Context, p Player, answer string) (*SubmitAnswerResponse, error) {
	ss, u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}

	if ss.LastQuestionID == 0 {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("no question has been presented"))
	}

	q, err := s.questions.Question(ctx, ss.LastQuestionID)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer)) {
		return &SubmitAnswerResponse{Progress: progressOf(u, ss)}, nil
	}

	wonBefore := ss.HasWon(u.Points)

	u, err = s.ledger.CompleteQuestion(ctx, u.ID, q)
	if err != nil {
		return nil, err
	}

	ss.LastQuestionID = 0
	if err := s.sessions.SaveSession(ctx, ss); err != nil {
		return nil, err
	}

	resp := &SubmitAnswerResponse{Correct: true, Progress: progressOf(u, ss)}
	if resp.Progress.Won && !wonBefore && s.eb != nil {
		s.eb.Publish(ctx, domain.EventGameWon{
			SessionID: ss.SessionID,
			Username:  u.Username,
			Points:    u.Points,
		})
	}

	return resp, nil
}

type RewardSongResponse struct {
	Song     *domain.Song
	MediaRef string
	Progress Progress
}

// RewardSong plays a song the user has not heard yet and starts the next round. A round pays out
// one song; concurrent claims of the same round fail with CodeFailedPrecondition.
func (s *Service) RewardSong(ctx context.Context, p Player) (*RewardSongResponse, error) {
	ss, u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}

	if !s.ledger.HasWon(u, ss) {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("round not won yet: %d of %d points", ss.GamePoints(u.Points), ss.WinThreshold+1))
	}

	claimed, err := s.sessions.ClaimReward(ctx, ss)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("round reward already claimed"))
	}

	resp, err := s.reward(ctx, ss, u)
	if err != nil {
		if err := s.sessions.ReleaseReward(ctx, ss); err != nil {
			slog.WarnContext(ctx, "game: release reward failed", "session", ss.SessionID, "error", err)
		}
		return nil, err
	}

	return resp, nil
}

func (s *Service) reward(ctx context.Context, ss *domain.Session, u *domain.User) (*RewardSongResponse, error) {
	item, err := s.selector.SelectUnseen(ctx, selection.SelectRequest{
		Variant:  domain.VariantSong,
		Consumed: u.ConsumedSongs,
	})
	if err != nil {
		return nil, err
	}
	song := item.(*domain.Song)

	ref := s.materialize(ctx, song)

	u, err = s.ledger.RecordSongPlay(ctx, u.ID, song)
	if err != nil {
		return nil, err
	}

	// The claim key is per start points, so moving them opens the next round.
	ss.StartPoints = u.Points
	ss.LastQuestionID = 0
	if err := s.sessions.SaveSession(ctx, ss); err != nil {
		return nil, err
	}

	return &RewardSongResponse{
		Song:     song,
		MediaRef: ref,
		Progress: progressOf(u, ss),
	}, nil
}

func (s *Service) load(ctx context.Context, p Player) (*domain.Session, *domain.User, error) {
	ss, err := s.session(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.users.GetUser(ctx, ss.UserID)
	if err != nil {
		return nil, nil, err
	}

	return ss, u, nil
}

// session returns the player's session. A session of another user is reported as missing.
func (s *Service) session(ctx context.Context, p Player) (*domain.Session, error) {
	ss, err := s.sessions.GetSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	if ss.UserID != p.UserID {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", p.SessionID))
	}

	return ss, nil
}

// materialize produces the item's audio. Failing to do so never fails the game.
func (s *Service) materialize(ctx context.Context, item domain.Item) string {
	if s.media == nil {
		return item.MediaRef()
	}

	ref, err := s.media.Materialize(ctx, item)
	if err != nil {
		slog.WarnContext(ctx, "game: no audio for item",
			"variant", item.Kind().String(),
			"id", item.ItemID(),
			"error", err,
		)
		return ""
	}
	return ref
}

func progressOf(u *domain.User, ss *domain.Session) Progress {
	return Progress{
		Points:     u.Points,
		GamePoints: ss.GamePoints(u.Points),
		Goal:       ss.WinThreshold + 1,
		Won:        ss.HasWon(u.Points),
	}
}

func shuffle(choices []string) []string {
	out := slices.Clone(choices)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
