package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Dental-Assistant/agent/app"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/inbound"
	configx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/config"
	"github.com/tanpawarit/Chative-Dental-Assistant/pkg/httpserver"
	_ "github.com/tanpawarit/Chative-Dental-Assistant/pkg/logger/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCfg := configx.MustNew[httpserver.Config]("HTTP")

	a, err := app.Build(ctx, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close history store")
		}
	}()

	var verifier httpserver.Verifier
	if a.Verifier != nil {
		verifier = a.Verifier
	} else if serverCfg.AllowUnsigned {
		log.Warn().Msg("no qstash signing keys; inbound signatures are not verified")
	}

	handle := func(ctx context.Context, body []byte) error {
		_, err := a.Inbound.HandleRaw(ctx, body)
		return err
	}
	srv, err := httpserver.New(*serverCfg, handle, inbound.Retryable, verifier)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http server")
	}

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("http server stopped")
	}
}
