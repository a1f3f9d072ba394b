package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/sunobot/wa-event-gateway/config"
	"github.com/sunobot/wa-event-gateway/internal/domain/registry"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			func(hub registry.Hubber, cfg *config.Config) *DeliveryService {
				return NewDeliveryService(hub, cfg.Stream.BufferSize)
			},
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			func(generator ReplyGenerator, sender TextSender, prompts *PromptStore, cfg *config.Config) *AutoReplyService {
				return NewAutoReplyService(generator, sender, prompts, cfg.AutoReply.Enabled)
			},
			fx.As(new(Replier)),
		),
		func(cfg *config.Config) *TokenStore {
			return NewTokenStore(
				WithTokenTTL(cfg.Stream.TokenTTL),
				WithTokenSweepInterval(cfg.Stream.TokenSweepEvery),
			)
		},
		func(cfg *config.Config) (*PromptStore, error) {
			return NewPromptStore(cfg.AutoReply.PromptFile)
		},
	),

	// [DECORATION_LAYER] Intercept Replier to add cross-cutting concerns
	fx.Decorate(func(orig Replier, logger *slog.Logger) Replier {
		return &replierMiddleware{
			next:   orig,
			logger: logger,
		}
	}),

	// [BACKGROUND] Token sweeper and prompt file watcher live for the
	// whole process and stop with the fx app.
	fx.Invoke(func(lc fx.Lifecycle, tokens *TokenStore, prompts *PromptStore) {
		ctx, cancel := context.WithCancel(context.Background())
		var stopWatch func()

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go tokens.Run(ctx)

				stop, err := prompts.Watch()
				if err != nil {
					cancel()
					return err
				}
				stopWatch = stop
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				if stopWatch != nil {
					stopWatch()
				}
				return nil
			},
		})
	}),
)
