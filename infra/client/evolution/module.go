package evolution

import (
	"context"
	"log/slog"

	"github.com/sunobot/wa-event-gateway/config"
	"github.com/sunobot/wa-event-gateway/internal/adapter/pubsub"
	"github.com/sunobot/wa-event-gateway/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"evolution_client",

	// [CONSTRUCTOR] Provides the resilient provider client
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Client {
			return New(Config{
				BaseURL: cfg.Evolution.URL,
				APIKey:  cfg.Evolution.APIKey,
				Timeout: cfg.Evolution.Timeout,
			}, logger)
		},
		fx.Annotate(
			func(c *Client) *Client { return c },
			fx.As(new(service.TextSender)),
		),
	),

	// [LIFECYCLE] Optional socket ingest, for deployments where the provider
	// cannot deliver webhooks to the gateway.
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, dispatcher pubsub.EventDispatcher, logger *slog.Logger) {
		if !cfg.Evolution.SocketEnabled {
			return
		}

		consumer := NewSocketConsumer(cfg.Evolution.URL, cfg.Evolution.APIKey, dispatcher, logger)
		ctx, cancel := context.WithCancel(context.Background())

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go consumer.Run(ctx)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}),
)
