package openrouter

import (
	"github.com/sunobot/wa-event-gateway/config"
	"github.com/sunobot/wa-event-gateway/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"openrouter_client",

	fx.Provide(
		func(cfg *config.Config) *Client {
			return New(Config{
				BaseURL: cfg.OpenRouter.URL,
				APIKey:  cfg.OpenRouter.APIKey,
				Model:   cfg.OpenRouter.Model,
			})
		},
		fx.Annotate(
			func(c *Client) *Client { return c },
			fx.As(new(service.ReplyGenerator)),
		),
	),
)
