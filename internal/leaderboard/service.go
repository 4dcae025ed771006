package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	DefaultLimit    = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// Limit is how many entries a published leaderboard carries.
	Limit int
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	limit  int
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		limit:  c.Limit,
	}

	if s.limit <= 0 {
		s.limit = DefaultLimit
	}

	s.eb.Subscribe(domain.EventNamePointsAwarded, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventPointsAwarded))
	})

	return s
}

type GetLeaderboardRequest struct {
	// Limit caps the number of entries. Zero means the configured default.
	Limit int
}

// GetLeaderboard returns the users with the most points, best first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.limit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Username: z.Member.(string),
			Points:   int(z.Score),
		})
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

// UpdateLeaderboard overwrites the user's points in the leaderboard.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventPointsAwarded) error {
	sc := e.Score

	if err := s.redis.ZAdd(ctx, s.getLeaderboardKey(), redis.Z{
		Score:  float64(sc.Points),
		Member: sc.Username,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sc)
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per interval.
// Points change in bursts, so publishing every change would flood subscribers.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, sc domain.Score) error {
	// SetNX keeps several instances from publishing the same interval twice.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(), sc.UpdateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx)
}

func (s *Service) publishLeaderboard(ctx context.Context) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) getLeaderboardTimeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}
