package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"
)

func ProvideLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})).With("service", ServiceName)

	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

// ProvidePubSub wires the in-process broker. Every Subscribe call gets its
// own delivery channel, so independent bus listeners each see the full
// event flow.
func ProvidePubSub(lc fx.Lifecycle, wmLogger watermill.LoggerAdapter) *gochannel.GoChannel {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, wmLogger)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pubSub.Close()
		},
	})

	return pubSub
}

func ProvidePublisher(pubSub *gochannel.GoChannel) message.Publisher {
	return pubSub
}

func ProvideSubscriber(pubSub *gochannel.GoChannel) message.Subscriber {
	return pubSub
}
