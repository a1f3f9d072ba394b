package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/config"
	"github.com/sunobot/wa-event-gateway/infra/client/evolution"
	"github.com/sunobot/wa-event-gateway/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("web-handler",
	fx.Provide(
		NewWebhookHandler,
		NewInstancesHandler,
		NewPromptHandler,
		NewHealthHandler,

		func(deliverer service.Deliverer, tokens *service.TokenStore, api *evolution.Client, cfg *config.Config, logger *slog.Logger) *SSEHandler {
			return NewSSEHandler(deliverer, tokens, api, cfg.Stream.HeartbeatInterval, logger)
		},
		func(deliverer service.Deliverer, tokens *service.TokenStore, cfg *config.Config) *PollHandler {
			return NewPollHandler(deliverer, tokens, cfg.Stream.PollTimeout)
		},
		func(tokens *service.TokenStore, cfg *config.Config) *TokenHandler {
			return NewTokenHandler(tokens, cfg.PublicBaseURL)
		},
		func(api EvolutionAPI, cfg *config.Config, logger *slog.Logger) *MeHandler {
			return NewMeHandler(api, cfg.Evolution.DefaultInstance, cfg.PublicBaseURL, logger)
		},
		fx.Annotate(
			func(c *evolution.Client) *evolution.Client { return c },
			fx.As(new(EvolutionAPI)),
		),

		NewRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, mux *chi.Mux, logger *slog.Logger) {
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 10,
			// No WriteTimeout: SSE responses are open-ended.
		}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					logger.Info("HTTP_LISTENING", "addr", cfg.ListenAddr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("HTTP_SERVER_STOPPED", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
