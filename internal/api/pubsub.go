package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/listenup/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Username string `json:"username"`
		Points   int    `json:"points"`
	}

	GameWon struct {
		SessionID string `json:"session_id"`
		Points    int    `json:"points"`
	}
)

// PublishLeaderboardUpdated notifies every user listed on the leaderboard.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := Leaderboard{Entries: leaderboardEntries(e.Leaderboard)}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.Username, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) PublishGameWon(ctx context.Context, e domain.EventGameWon) error {
	return a.publishNotification(ctx, e.Username, e.Name(), GameWon{
		SessionID: e.SessionID,
		Points:    e.Points,
	})
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, UserChannel(a.prefix, user), b).Err()
}

// UserChannel is the pub/sub channel a user's notifications are published to.
func UserChannel(prefix, user string) string {
	return fmt.Sprintf("%s:user:%s", prefix, user)
}

func leaderboardEntries(l domain.Leaderboard) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, LeaderboardEntry{
			Username: e.Username,
			Points:   e.Points,
		})
	}
	return entries
}
