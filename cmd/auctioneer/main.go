package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/dbconfig"
	"github.com/crickstack/auctioneer/internal/engine"
	"github.com/crickstack/auctioneer/internal/gateway"
	"github.com/crickstack/auctioneer/internal/outbox"
	"github.com/crickstack/auctioneer/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database handles: pgx pool for entities, database/sql for the
	// journal and outbox tables.
	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.OpenPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open pgx pool")
	}
	defer pool.Close()

	db, err := dbCfg.OpenSQL()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open sql handle")
	}
	defer db.Close()

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", cfg.NATS.URL).
		Msg("starting auctioneer")

	entityStore := postgres.NewStore(pool, db)
	outboxRepo := outbox.NewRepository(db)

	eng := engine.NewEngine(entityStore, outbox.NewBroadcaster(outboxRepo), engine.Options{})

	// Outbox relay: rows written by the engine flow to JetStream.
	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATS.URL
	jsCfg.StreamName = cfg.NATS.Stream
	jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

	publisher, err := outbox.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream publisher")
	}
	defer publisher.Close()

	workerCfg := outbox.DefaultWorkerConfig()
	workerCfg.PollInterval = cfg.outboxPollInterval()
	workerCfg.BatchSize = cfg.Outbox.BatchSize

	worker := outbox.NewWorker(outboxRepo, publisher, workerCfg)
	if err := worker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}
	defer worker.Stop()

	// WebSocket fan-out: JetStream back into connected clients.
	connManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go connManager.Start(ctx)

	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = cfg.NATS.URL
	consumerCfg.StreamName = cfg.NATS.Stream
	consumerCfg.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"

	consumer, err := gateway.NewEventConsumer(connManager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	defer consumer.Stop()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	svc := gateway.NewService(eng, gateway.NewWebSocketHandler(connManager))
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      svc.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("auctioneer shutdown complete")
}
