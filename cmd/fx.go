package cmd

import (
	"github.com/sunobot/wa-event-gateway/config"
	"github.com/sunobot/wa-event-gateway/infra/client/evolution"
	"github.com/sunobot/wa-event-gateway/infra/client/openrouter"
	"github.com/sunobot/wa-event-gateway/internal/domain/registry"
	"github.com/sunobot/wa-event-gateway/internal/handler/bus"
	"github.com/sunobot/wa-event-gateway/internal/handler/web"
	"github.com/sunobot/wa-event-gateway/internal/service"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvidePubSub,
			ProvidePublisher,
			ProvideSubscriber,
		),
		evolution.Module,
		openrouter.Module,
		service.Module,
		registry.Module,
		bus.Module,
		web.Module,
	)
}
