package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
)

const DefaultTTL = 24 * time.Hour

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// TTL is how long an idle session is kept.
	TTL time.Duration
}

// Service keeps game sessions in Redis. Sessions are ephemeral and expire when idle.
type Service struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}

	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}

	return s
}

// CreateSessionRequest represents a request to start a new game session.
type CreateSessionRequest struct {
	UserID int64
	// Points is the user's total points when the session starts.
	Points       int
	WinThreshold int
	Options      domain.Options
}

// CreateSession starts a new game session.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	ss := &domain.Session{
		SessionID:    id.String(),
		UserID:       req.UserID,
		StartPoints:  req.Points,
		WinThreshold: req.WinThreshold,
		Options:      req.Options,
		CreateTime:   time.Now(),
	}

	if err := s.SaveSession(ctx, ss); err != nil {
		return nil, err
	}

	return ss, nil
}

// GetSession returns the session and extends its lifetime.
func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	b, err := s.redis.GetEx(ctx, s.getSessionKey(id), s.ttl).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var ss domain.Session
	if err := json.Unmarshal(b, &ss); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}

	return &ss, nil
}

func (s *Service) SaveSession(ctx context.Context, ss *domain.Session) error {
	b, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", ss.SessionID, err)
	}

	if err := s.redis.Set(ctx, s.getSessionKey(ss.SessionID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// EndSession deletes the session. Ending a session that does not exist is not an error.
func (s *Service) EndSession(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.getSessionKey(id)).Err(); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// ClaimReward reserves the reward of the session's current round, identified by its start points.
// Only the first claim of a round succeeds.
func (s *Service) ClaimReward(ctx context.Context, ss *domain.Session) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.getRewardKey(ss), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim reward: %w", err)
	}
	return ok, nil
}

// ReleaseReward gives back a claim whose reward could not be delivered.
func (s *Service) ReleaseReward(ctx context.Context, ss *domain.Session) error {
	if err := s.redis.Del(ctx, s.getRewardKey(ss)).Err(); err != nil {
		return fmt.Errorf("release reward: %w", err)
	}
	return nil
}

func (s *Service) getRewardKey(ss *domain.Session) string {
	return fmt.Sprintf("%s:session:%s:reward:%d", s.prefix, ss.SessionID, ss.StartPoints)
}

func (s *Service) getSessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}
