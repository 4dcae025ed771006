package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/listenup/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	tests := map[string]struct {
		published []string
		// subscriptions maps a subscriber to the event names it listens to.
		subscriptions map[string][]string
		want          map[string][]string
	}{
		"only the subscribed event is delivered": {
			published:     []string{"points.awarded", "game.won"},
			subscriptions: map[string][]string{"leaderboard": {"points.awarded"}},
			want:          map[string][]string{"leaderboard": {"points.awarded"}},
		},
		"repeated events are all delivered": {
			published:     []string{"points.awarded", "points.awarded"},
			subscriptions: map[string][]string{"leaderboard": {"points.awarded"}},
			want:          map[string][]string{"leaderboard": {"points.awarded", "points.awarded"}},
		},
		"every subscriber gets its own copy": {
			published: []string{"game.won"},
			subscriptions: map[string][]string{
				"pubsub":  {"game.won"},
				"metrics": {"game.won"},
				"audit":   {"game.won"},
			},
			want: map[string][]string{
				"pubsub":  {"game.won"},
				"metrics": {"game.won"},
				"audit":   {"game.won"},
			},
		},
		"mixed events reach the matching subscribers": {
			published: []string{"points.awarded", "game.won", "points.awarded", "leaderboard.updated"},
			subscriptions: map[string][]string{
				"leaderboard": {"points.awarded"},
				"audit":       {"points.awarded", "game.won"},
				"pubsub":      {"leaderboard.updated", "game.won"},
			},
			want: map[string][]string{
				"leaderboard": {"points.awarded", "points.awarded"},
				"audit":       {"points.awarded", "points.awarded", "game.won"},
				"pubsub":      {"game.won", "leaderboard.updated"},
			},
		},
		"events without subscribers are dropped": {
			published:     []string{"game.won"},
			subscriptions: map[string][]string{"leaderboard": {"points.awarded"}},
			want:          map[string][]string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var (
				mu       sync.Mutex
				received = make(map[string][]string)
			)

			b := event.NewBus()
			for subscriber, names := range tt.subscriptions {
				for _, n := range names {
					b.Subscribe(n, func(_ context.Context, e event.Event) error {
						mu.Lock()
						defer mu.Unlock()
						received[subscriber] = append(received[subscriber], e.Name())
						return nil
					})
				}
			}

			for _, n := range tt.published {
				b.Publish(context.Background(), eventWithName(n))
			}
			b.Stop()

			assert.Len(t, received, len(tt.want))
			for subscriber, want := range tt.want {
				assert.ElementsMatch(t, want, received[subscriber], subscriber)
			}
		})
	}
}

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}

func TestBus_FailingHandlersAreIsolated(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1), event.WithTimeout(time.Second))

	var (
		mu       sync.Mutex
		received int
	)

	b.Subscribe("e1", func(context.Context, event.Event) error {
		panic("boom")
	})
	b.Subscribe("e1", func(context.Context, event.Event) error {
		return errors.New("failed")
	})
	b.Subscribe("e1", func(context.Context, event.Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		return nil
	})

	b.Publish(context.Background(), eventWithName("e1"))
	b.Publish(context.Background(), eventWithName("e1"))
	b.Stop()

	assert.Equal(t, 2, received)
}

func TestBus_HandlerContextOutlivesPublisher(t *testing.T) {
	b := event.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	b.Subscribe("e1", func(ctx context.Context, _ event.Event) error {
		time.Sleep(10 * time.Millisecond)
		done <- ctx.Err()
		return nil
	})

	b.Publish(ctx, eventWithName("e1"))
	cancel()
	b.Stop()

	assert.NoError(t, <-done)
}
