package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/event"
	"github.com/victornm/listenup/internal/game"
	"github.com/victornm/listenup/internal/leaderboard"
	"github.com/victornm/listenup/internal/user"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Users        *user.Service
	Tokens       *user.Tokens
	Game         *game.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	us  *user.Service
	ts  *user.Tokens
	gs  *game.Service
	ls  *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		us:     c.Users,
		ts:     c.Tokens,
		gs:     c.Game,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// HTTP APIs
	v1 := c.Router.Group("/v1")
	v1.POST("/signup", a.Signup)
	v1.POST("/login", a.Login)
	v1.GET("/options", a.ListOptions)
	v1.GET("/leaderboard", a.GetLeaderboard)

	authed := v1.Group("", a.authenticate)
	authed.POST("/logout", a.Logout)
	authed.PUT("/password", a.ChangePassword)
	authed.PUT("/game/options", a.SetOptions)
	authed.GET("/game/question", a.NextQuestion)
	authed.POST("/game/answer", a.SubmitAnswer)
	authed.GET("/game/song", a.RewardSong)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameGameWon, func(ctx context.Context, e event.Event) error {
		return a.PublishGameWon(ctx, e.(domain.EventGameWon))
	})

	return a
}
