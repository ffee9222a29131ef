package realtime

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification.realtime",
	fx.Provide(NewHub),
	fx.Provide(NewPublisher),
)

// NewPublisher uses the redis broker when a client is configured and the
// in-process broker otherwise.
func NewPublisher(lc fx.Lifecycle, client *redis.Client, hub *Hub, log *zap.Logger) Publisher {
	if client == nil {
		return NewLocalBroker(hub)
	}

	broker := NewRedisBroker(client, hub, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return broker.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return broker.Stop(ctx)
		},
	})
	return broker
}
