package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/listenup/internal/api"
	"github.com/victornm/listenup/internal/content"
	"github.com/victornm/listenup/internal/event"
	"github.com/victornm/listenup/internal/game"
	"github.com/victornm/listenup/internal/leaderboard"
	"github.com/victornm/listenup/internal/media"
	"github.com/victornm/listenup/internal/memory"
	"github.com/victornm/listenup/internal/postgres"
	"github.com/victornm/listenup/internal/progress"
	"github.com/victornm/listenup/internal/provider/musixmatch"
	"github.com/victornm/listenup/internal/provider/opentdb"
	"github.com/victornm/listenup/internal/selection"
	"github.com/victornm/listenup/internal/session"
	"github.com/victornm/listenup/internal/telemetry"
	"github.com/victornm/listenup/internal/user"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

const (
	loadRetryInterval    = time.Second
	maxLoadRetryInterval = 30 * time.Second
)

// repository is implemented by every storage driver.
type repository interface {
	content.Repository
	progress.Repository
	user.Repository
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			session     redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		repo     repository
	}

	service struct {
		content     *content.Store
		selection   *selection.Engine
		progress    *progress.Ledger
		media       *media.Materializer
		session     *session.Service
		user        *user.Service
		tokens      *user.Tokens
		game        *game.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	// done is closed by Shutdown.
	done chan struct{}
}

func Init(c Config) (*Server, error) {
	if len(c.Auth.Secret) == 0 {
		return nil, fmt.Errorf("server: auth.secret is not set")
	}

	s := &Server{c: c, done: make(chan struct{})}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, c RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Pass,
		})

		if err := telemetry.MonitorRedis(name, r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.session, err = connect("session", s.c.Redis.Session)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initStorage() error {
	switch s.c.Storage.Driver {
	case StorageMemory:
		slog.Warn("server: using in-memory storage, content and users are lost on restart")
		s.infra.repo = memory.NewStore()
		return nil

	case StoragePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pc := s.c.Postgres
		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
		if err != nil {
			return err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return err
		}

		if err := db.Ping(ctx); err != nil {
			db.Close()
			return err
		}

		store := postgres.NewStore(postgres.Config{DB: db})
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return err
		}

		s.infra.postgres = db
		s.infra.repo = store
		return nil

	default:
		return fmt.Errorf("unknown driver %q", s.c.Storage.Driver)
	}
}

func (s *Server) initService() {
	s.service.content = content.NewStore(content.Config{
		Repo: s.infra.repo,
	})

	s.service.selection = selection.NewEngine(selection.Config{
		Store: s.service.content,
		Questions: opentdb.NewClient(opentdb.Config{
			URL:     s.c.Providers.Trivia.URL,
			Timeout: s.c.Providers.Trivia.Timeout,
		}),
		Songs: musixmatch.NewClient(musixmatch.Config{
			URL:       s.c.Providers.Musixmatch.URL,
			APIKey:    s.c.Providers.Musixmatch.APIKey,
			Country:   s.c.Providers.Musixmatch.Country,
			ChartSize: s.c.Providers.Musixmatch.ChartSize,
			Timeout:   s.c.Providers.Musixmatch.Timeout,
		}),
		BatchSize:   s.c.Game.BatchSize,
		MaxAttempts: s.c.Game.MaxAttempts,
	})

	s.service.progress = progress.NewLedger(progress.Config{
		Repo:     s.infra.repo,
		Catalog:  s.service.content,
		EventBus: s.eb,
	})

	s.service.session = session.NewService(session.Config{
		Redis:  s.infra.redis.session,
		Prefix: s.c.Redis.Session.Prefix,
		TTL:    s.c.Game.SessionTTL,
	})

	s.service.user = user.NewService(user.Config{
		Repo: s.infra.repo,
	})

	s.service.tokens = user.NewTokens(user.TokenConfig{
		Secret: []byte(s.c.Auth.Secret),
		TTL:    s.c.Auth.TokenTTL,
	})

	gc := game.Config{
		Users:        s.infra.repo,
		Questions:    s.service.content,
		Sessions:     s.service.session,
		Selector:     s.service.selection,
		Ledger:       s.service.progress,
		EventBus:     s.eb,
		WinThreshold: s.c.Game.WinThreshold,
	}

	if sp := s.c.Providers.Speech; sp.URL != "" {
		s.service.media = media.NewMaterializer(media.Config{
			Dir: s.c.Media.Dir,
			Synthesizer: media.NewSpeechClient(media.SpeechConfig{
				URL:     sp.URL,
				User:    sp.User,
				Pass:    sp.Pass,
				Voice:   sp.Voice,
				Timeout: sp.Timeout,
			}),
			Store: s.service.content,
		})
		gc.Media = s.service.media
	} else {
		slog.Warn("server: speech service not configured, no audio will be produced")
	}

	s.service.game = game.NewService(gc)

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), telemetry.HTTPMiddleware())
	if len(s.c.HTTP.CORSOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins: s.c.HTTP.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	if s.c.Media.Dir != "" {
		e.Static("/media", s.c.Media.Dir)
	}

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Users:        s.service.user,
		Tokens:       s.service.tokens,
		Game:         s.service.game,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, "server: gRPC listening", "port", s.c.GRPC.Port)
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, "server: HTTP listening", "port", s.c.HTTP.Port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.loadContent(ctx, loadRetryInterval)
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// loadContent loads the content store, retrying with backoff until it succeeds or the server shuts
// down. The gRPC health status turns SERVING once the store is loaded.
func (s *Server) loadContent(ctx context.Context, retry time.Duration) {
	start := time.Now()
	for attempt := 1; ; attempt++ {
		err := s.service.content.Load(ctx)
		if err == nil {
			s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			slog.InfoContext(ctx, "server: content loaded", "attempt", attempt, "duration", time.Since(start))
			return
		}

		slog.ErrorContext(ctx, "server: load content failed", "attempt", attempt, "retry_in", retry, "error", err)

		select {
		case <-s.done:
			return
		case <-time.After(retry):
		}
		retry = min(2*retry, maxLoadRetryInterval)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(s.done)
	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for name, r := range map[string]redis.UniversalClient{
		"session":     s.infra.redis.session,
		"leaderboard": s.infra.redis.leaderboard,
		"pubsub":      s.infra.redis.pubsub,
	} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
