package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/adapters/httpapi"
	"github.com/bubble-chat/server/internal/adapters/ws"
	"github.com/bubble-chat/server/internal/app"
	"github.com/bubble-chat/server/internal/config"
	"github.com/bubble-chat/server/internal/push"
	"github.com/bubble-chat/server/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	records, err := store.Open(cfg.BadgerPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer records.Close()

	var gateway push.Gateway = push.Console{}
	if cfg.Mode == "release" && cfg.PushKey != "" {
		gateway = push.NewFCM(cfg.PushEndpoint, cfg.PushKey)
	}

	collab := app.Collaborators{Action: app.ParseFailureAction(cfg.OnCollaboratorFailure)}
	registry := app.NewRegistry()
	identities := app.NewIdentities(records, collab)
	notifier := app.NewNotifier(registry, gateway, collab)
	rooms := app.NewRooms(registry, notifier, records, collab, cfg.StaleWindow, cfg.MessageCap)
	if saved, err := records.Rooms(); err == nil {
		rooms.Restore(saved, records)
	} else {
		log.Warn().Err(err).Msg("room restore skipped")
	}
	matcher := app.NewMatcher(registry, rooms, records, collab)

	ctl := &ws.Controller{
		Registry:   registry,
		Identities: identities,
		Rooms:      rooms,
		Matcher:    matcher,
		Notifier:   notifier,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}
	rooms.SetEmitter(ctl)

	r := httpapi.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Bubble server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
