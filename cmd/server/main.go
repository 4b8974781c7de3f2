package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"chat-realtime/internal/api/routes"
	"chat-realtime/internal/auth"
	"chat-realtime/internal/config"
	"chat-realtime/internal/firehose"
	"chat-realtime/internal/presence"
	"chat-realtime/internal/realtime"
	"chat-realtime/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("starting realtime chat server")

	db, err := store.NewPostgresConnection(cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(db); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	channelStore := store.New(db)

	var opts []realtime.Option
	var redisClient *redis.Client
	if cfg.Redis.URI != "" {
		redisClient, err = presence.NewRedisConnection(cfg.Redis.URI)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		opts = append(opts, realtime.WithPresenceStore(presence.NewRedisStore(redisClient)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := firehose.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, realtime.WithEventSink(publisher))
	}

	hub := realtime.NewHub(channelStore, channelStore, opts...)
	go hub.Run()

	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)
	router := routes.NewRouter(hub, verifier, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
