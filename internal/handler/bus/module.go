package bus

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	pubsubadapter "github.com/sunobot/wa-event-gateway/internal/adapter/pubsub"
	"go.uber.org/fx"
)

func NewWatermillRouter(wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{
		CloseTimeout: time.Second * 30,
	}, wmLogger)
}

var Module = fx.Module("bus-handler",
	fx.Provide(
		pubsubadapter.NewEventDispatcher,

		NewEventHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, h *EventHandler, router *message.Router, sub message.Subscriber) error {
		if err := h.RegisterHandlers(router, sub); err != nil {
			return err
		}

		runCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := router.Run(runCtx); err != nil {
						h.logger.Error("BUS_ROUTER_STOPPED", "err", err)
					}
				}()
				<-router.Running()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return router.Close()
			},
		})
		return nil
	}),
)
