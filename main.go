package main

import (
	"classgame/internal/config"
	"classgame/internal/database/db_client"
	"classgame/internal/http/gamehandler"
	"classgame/internal/http/http_server"
	"classgame/internal/metrics"
	"classgame/internal/redis/redis_client"
	"classgame/internal/redis/redis_functions"
	"classgame/internal/redis/watcher/roomwatcher"
	"classgame/internal/room"
	"classgame/internal/services/score"
	"classgame/internal/ws"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := ws.NewHub()
	wsOpts := []ws.Option{
		ws.WithMetrics(m),
		ws.WithStrictTransitions(cfg.StrictTransitions),
	}

	// 3. Room registry: process memory, or Redis shared by every instance
	var registry room.Registry
	switch cfg.RegistryBackend {
	case config.BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}

		redisRegistry := room.NewRedisRegistry(redisClient, cfg.RoomIdleTTL)
		registry = redisRegistry
		wsOpts = append(wsOpts, ws.WithPublisher(ws.NewRedisPublisher(redisClient, hub)))

		// Background: idle-room expiry
		go roomwatcher.Run(ctx, redisClient, redisRegistry, m)
	default:
		registry = room.NewMemoryRegistry()
	}
	Log.Info("room registry ready", zap.String("backend", cfg.RegistryBackend))

	// 4. Score store
	var store score.Store
	switch cfg.ScoreStore {
	case config.BackendPostgres:
		pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		if err := db_client.Migrate(ctx, pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		store = score.NewPostgresStore(pgDb)
	default:
		store = score.NewMemoryStore()
	}
	scoreService := score.NewScoreService(store,
		score.WithWindows(cfg.ScoreCoalesceWindow, cfg.ScoreRaceWindow),
	)

	// 5. Presence gateway
	wsSrv := ws.NewWsServer(hub, registry, wsOpts...)

	// 6. HTTP + WS server
	gameHandler := gamehandler.New(registry, scoreService, m)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, gameHandler, prometheus.DefaultGatherer)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	Log.Info("shutdown complete")
}
