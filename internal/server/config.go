package server

import (
	"time"

	"github.com/victornm/listenup/internal/game"
	"github.com/victornm/listenup/internal/provider/musixmatch"
	"github.com/victornm/listenup/internal/provider/opentdb"
	"github.com/victornm/listenup/internal/selection"
	"github.com/victornm/listenup/internal/session"
	"github.com/victornm/listenup/internal/telemetry"
	"github.com/victornm/listenup/internal/user"
)

type Config struct {
	HTTP struct {
		Port        int32
		CORSOrigins []string `mapstructure:"cors_origins"`
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Storage struct {
		// Driver is "postgres" or "memory".
		Driver string
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Redis struct {
		Session     RedisConfig
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Game struct {
		WinThreshold int           `mapstructure:"win_threshold"`
		BatchSize    int           `mapstructure:"batch_size"`
		MaxAttempts  int           `mapstructure:"max_attempts"`
		SessionTTL   time.Duration `mapstructure:"session_ttl"`
	}

	Providers struct {
		Trivia struct {
			URL     string
			Timeout time.Duration
		}

		Musixmatch struct {
			URL       string
			APIKey    string `mapstructure:"api_key"`
			Country   string
			ChartSize int `mapstructure:"chart_size"`
			Timeout   time.Duration
		}

		Speech struct {
			URL     string
			User    string
			Pass    string
			Voice   string
			Timeout time.Duration
		}
	}

	Media struct {
		Dir string
	}

	Auth struct {
		Secret   string
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	}
}

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

// DefaultConfig returns a configuration that runs locally against a Redis on localhost.
// Every value can be overridden by the config file or the environment.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Log = telemetry.LogConfig{Format: "json", Level: "info"}
	c.Storage.Driver = StorageMemory

	local := RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "listenup"}
	c.Redis.Session = local
	c.Redis.Leaderboard = local
	c.Redis.Pubsub = local

	c.Game.WinThreshold = game.DefaultWinThreshold
	c.Game.BatchSize = selection.DefaultBatchSize
	c.Game.MaxAttempts = selection.DefaultMaxAttempts
	c.Game.SessionTTL = session.DefaultTTL

	c.Providers.Trivia.URL = opentdb.DefaultURL
	c.Providers.Trivia.Timeout = 10 * time.Second
	c.Providers.Musixmatch.URL = musixmatch.DefaultURL
	c.Providers.Musixmatch.Country = musixmatch.DefaultCountry
	c.Providers.Musixmatch.ChartSize = 10
	c.Providers.Musixmatch.Timeout = 10 * time.Second
	c.Providers.Speech.Timeout = 30 * time.Second

	c.Media.Dir = "media"
	c.Auth.TokenTTL = user.DefaultTokenTTL

	return c
}
