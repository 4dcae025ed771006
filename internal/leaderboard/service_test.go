package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/event"
	"github.com/victornm/listenup/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	for _, sc := range []domain.Score{
		{Username: "u1", Points: 1, UpdateTime: time.Now()},
		{Username: "u2", Points: 3, UpdateTime: time.Now()},
		{Username: "u1", Points: 4, UpdateTime: time.Now()},
	} {
		err := s.UpdateLeaderboard(context.Background(), domain.EventPointsAwarded{Score: sc})
		require.NoError(t, err)
	}

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{Username: "u1", Points: 4},
			{Username: "u2", Points: 3},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_GetLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)
	require.Empty(t, resp.Entries, "empty leaderboard is not an error")

	for i, u := range []string{"a", "b", "c"} {
		err := s.UpdateLeaderboard(context.Background(), domain.EventPointsAwarded{
			Score: domain.Score{Username: u, Points: i + 1, UpdateTime: time.Now()},
		})
		require.NoError(t, err)
	}

	resp, err = s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{Username: "c", Points: 3},
		{Username: "b", Points: 2},
	}, resp.Entries)
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventPointsAwarded
			// wait is how long to wait between received events.
			wait time.Duration
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving points.awarded": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventPointsAwarded{
						{
							Score: domain.Score{
								Username:   "u1",
								Points:     1,
								UpdateTime: time.Now(),
							},
							QuestionID: 1,
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Entries: []domain.LeaderboardEntry{
						{Username: "u1", Points: 1},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 1 event leaderboard.updated after receiving many points.awarded within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventPointsAwarded{
						{Score: domain.Score{Username: "u1", Points: 1, UpdateTime: time.Now()}},
						{Score: domain.Score{Username: "u2", Points: 2, UpdateTime: time.Now()}},
						{Score: domain.Score{Username: "u1", Points: 2, UpdateTime: time.Now()}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},

		"should publish again once the publish interval has passed": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventPointsAwarded{
						{Score: domain.Score{Username: "u1", Points: 1, UpdateTime: time.Now()}},
						{Score: domain.Score{Username: "u2", Points: 2, UpdateTime: time.Now()}},
					},
					wait: time.Second,
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated events")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s, mr := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
				mr.FastForward(in.wait)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToPointsAwarded(t *testing.T) {
	eb := event.NewBus()
	s, _ := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), domain.EventPointsAwarded{
		Score: domain.Score{Username: "u1", Points: 5, UpdateTime: time.Now()},
	})
	eb.Stop()

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{Username: "u1", Points: 5}}, resp.Entries)
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c), rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
