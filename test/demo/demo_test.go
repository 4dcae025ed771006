//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/listenup/internal/api"
	"github.com/victornm/listenup/internal/domain"
)

const (
	baseURL = "http://localhost:8080/v1"
	prefix  = "listenup"
	rounds  = 10
)

// TestGame plays a few rounds for several users against a running server. Answers are guessed,
// so the test only logs progress.
func TestGame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var (
		rc    = makeRedis(t)
		wg    = new(sync.WaitGroup)
		users = []string{newUsername(), newUsername(), newUsername()}
	)

	// Prepare Redis subscriber
	subscribeAsUser(t, rc, wg, users[0])

	var eg errgroup.Group
	for _, u := range users {
		eg.Go(func() error {
			var auth api.AuthResponse
			if err := call(ctx, "", http.MethodPost, "/signup", map[string]string{"username": u, "password": "secret!"}, &auth); err != nil {
				return fmt.Errorf("user %q signup: %w", u, err)
			}

			for i := 0; i < rounds; i++ {
				var next api.NextQuestionResponse
				if err := call(ctx, auth.Token, http.MethodGet, "/game/question", nil, &next); err != nil {
					return fmt.Errorf("user %q next question: %w", u, err)
				}

				if next.Question == nil {
					var reward api.RewardSongResponse
					if err := call(ctx, auth.Token, http.MethodGet, "/game/song", nil, &reward); err != nil {
						return fmt.Errorf("user %q reward song: %w", u, err)
					}
					t.Logf("User %q won: %s - %s", u, reward.Song.Artist, reward.Song.Title)
					continue
				}

				var answer api.SubmitAnswerResponse
				req := api.SubmitAnswerRequest{Answer: next.Question.Choices[0]}
				if err := call(ctx, auth.Token, http.MethodPost, "/game/answer", req, &answer); err != nil {
					return fmt.Errorf("user %q submit answer: %w", u, err)
				}

				t.Logf("User %q answered %q: correct=%t, points=%d, game_points=%d/%d",
					u, next.Question.Question, answer.Correct, answer.Progress.Points, answer.Progress.GamePoints, answer.Progress.Goal)
			}

			return nil
		})
	}

	require.NoError(t, eg.Wait())

	var l api.LeaderboardResponse
	require.NoError(t, call(ctx, "", http.MethodGet, "/leaderboard", nil, &l))
	t.Logf("Final leaderboard:\n%s", formatLeaderboard(l.Entries))

	wg.Wait()
}

func newUsername() string {
	// The first group of a UUID is 8 hex characters.
	return "demo" + uuid.NewString()[:8]
}

func call(ctx context.Context, token, method, path string, body, out any) error {
	var r bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&r).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, &r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, e.Code, e.Message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func subscribeAsUser(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, u string) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, api.UserChannel(prefix, u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameLeaderboardUpdated:
				var l api.Leaderboard
				if err := json.Unmarshal(n.Data, &l); err != nil {
					t.Logf("unmarshal leaderboard: %v", err)
					continue
				}

				t.Logf("%s leaderboard:\n%s", u, formatLeaderboard(l.Entries))

			case domain.EventNameGameWon:
				t.Logf("%s won a game: %s", u, n.Data)
			}
		}
	}()
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatLeaderboard(entries []api.LeaderboardEntry) string {
	var s string
	for _, e := range entries {
		s += fmt.Sprintf("%s: %d\n", e.Username, e.Points)
	}
	return s
}
