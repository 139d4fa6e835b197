package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/content"
	"github.com/mcaldwell/podiumquiz/go/internal/engine"
	"github.com/mcaldwell/podiumquiz/go/internal/gateway"
	"github.com/mcaldwell/podiumquiz/go/internal/relay"
	"github.com/mcaldwell/podiumquiz/go/internal/rooms"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	config, err := loadConfig(getEnv("CONFIG_FILE", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := content.Load(config.Content.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("content validation failed")
	}

	var sink gateway.EventSink
	if config.Relay.NATSURL != "" {
		natsRelay, err := relay.Connect(config.Relay.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event relay")
		}
		defer natsRelay.Close()
		sink = natsRelay
	}

	clock := clockwork.NewRealClock()
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), clock, sink)
	registry := rooms.NewInMemory()
	eng := engine.New(registry, store, cm, clock)
	handler := gateway.NewHandler(eng, cm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	server := setupServer(config, handler)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
