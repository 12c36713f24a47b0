package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	chatx "github.com/vndang/shoptalk/agent/chat"
	commercex "github.com/vndang/shoptalk/agent/commerce"
	llmx "github.com/vndang/shoptalk/agent/llm"
	sessionx "github.com/vndang/shoptalk/agent/session"
	ticketx "github.com/vndang/shoptalk/agent/ticket"
	configx "github.com/vndang/shoptalk/pkg/config"
	_ "github.com/vndang/shoptalk/pkg/logger/autoload"
	metricsx "github.com/vndang/shoptalk/pkg/metrics"
	openrouterx "github.com/vndang/shoptalk/pkg/openrouter"
	serverx "github.com/vndang/shoptalk/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metricsx.NewDefault()

	archiveCfg := configx.MustNew[sessionx.ArchiveConfig]("SESSION_ARCHIVE")
	archive, err := sessionx.NewArchive(ctx, *archiveCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize session archive")
	}
	store := sessionx.NewStore(archive)

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	openRouterClient := openrouterx.NewClient(*openRouterCfg)
	if openRouterClient == nil {
		log.Fatal().Msg("openrouter client requires an API key")
	}
	responder, err := llmx.NewOpenAIResponder(
		openRouterClient,
		openRouterCfg.Model,
		openRouterCfg.MaxCompletionToken,
		openRouterCfg.Temperature,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize responder")
	}

	commerceCfg := configx.MustNew[commercex.Config]("COMMERCE")
	commerceClient, err := commercex.New(*commerceCfg, commercex.WithMetrics(met))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize commerce client")
	}

	chatCfg := configx.MustNew[chatx.Config]("CHAT")
	svc, err := chatx.NewService(store, responder, commerceClient, ticketx.NewTracker(), met, *chatCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize chat service")
	}

	serverCfg := configx.MustNew[serverx.Config]("SERVER")
	srv := serverx.New(svc, *serverCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}

	if closer, ok := archive.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("close session archive")
		}
	}
}
