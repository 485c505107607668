package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/infra/memory"
	"quiz-room-service/internal/infra/postgres"
	redisstore "quiz-room-service/internal/infra/redis"
	"quiz-room-service/internal/logger"
	transport "quiz-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	checks := map[string]transport.Checker{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		checks["redis"] = transport.CheckerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		log.Info("connected to postgres")
	}

	results := buildResults(cfg, redisClient, pool, checks)
	var rooms app.RoomRepository
	if redisClient != nil {
		rooms = redisstore.NewRoomStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	} else {
		rooms = memory.NewRoomStore()
	}

	service := app.NewRoomService(rooms, results, app.NewBroadcaster(0), roomConfig(cfg), log)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, log, checks),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting quiz room service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return service.RunJanitor(gctx,
			config.TTLDuration(cfg.Rooms.SweepInterval, time.Minute),
			config.TTLDuration(cfg.Rooms.Retention, 30*time.Minute),
		)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		service.Shutdown(shutdownCtx)
		return err
	})

	return g.Wait()
}

// buildResults picks the result archive: Postgres when configured, fronted by Redis or an
// in-process cache; otherwise a map.
func buildResults(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool, checks map[string]transport.Checker) app.ResultRepository {
	ttl := config.TTLDuration(cfg.Results.TTL, 10*time.Minute)
	if pool == nil {
		store := memory.NewResultStore()
		if redisClient != nil {
			return redisstore.NewResultRepository(redisClient, store, ttl)
		}
		return store
	}

	store := postgres.NewResultStore(pool)
	checks["postgres"] = transport.CheckerFunc(store.Ping)
	if redisClient != nil {
		return redisstore.NewResultRepository(redisClient, store, ttl)
	}
	return memory.NewResultCache(store, ttl)
}

func roomConfig(cfg config.Config) app.RoomConfig {
	return app.RoomConfig{
		Duration:     config.TTLDuration(cfg.Quiz.Duration, app.DefaultQuizDuration),
		TickInterval: config.TTLDuration(cfg.Quiz.TickInterval, app.DefaultTickInterval),
		TopK:         cfg.Quiz.TopK,
		BasePoints:   cfg.Quiz.BasePoints,
		Floor:        cfg.Quiz.Floor,
	}
}
