package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ncecere/voiceclone/internal/app"
	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/database"
	"github.com/ncecere/voiceclone/internal/health"
	"github.com/ncecere/voiceclone/internal/httpserver"
	"github.com/ncecere/voiceclone/internal/logging"
	"github.com/ncecere/voiceclone/internal/redisclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Log)

	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		if err := database.RunMigrations(ctx, cfg.Database); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.Redis.URL) != "" {
		redisClient = redisclient.New(cfg.Redis)
		if _, err := redisclient.Ping(ctx, redisClient); err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer redisClient.Close()
	}

	container, err := app.NewContainer(ctx, cfg, app.Deps{Pool: pool, Redis: redisClient, Logger: logger})
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = container.Close(shutdownCtx)
	}()

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	// /health answers "loading" until the model is warm; a failed warm-up
	// stops the server.
	warmErr := make(chan error, 1)
	go func() {
		if err := container.Synth.Warm(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				warmErr <- err
				stop()
			}
			return
		}
		health.NewMonitor(container.Synth, cfg.Engine, logger).Start(ctx)
	}()

	logger.Info("voiceclone server listening",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.String("engine", container.Synth.EngineName()),
		slog.String("model", container.Synth.ModelAlias()))
	if err := server.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server stopped: %v", err)
	}
	select {
	case err := <-warmErr:
		log.Fatalf("warm engine: %v", err)
	default:
	}
}
