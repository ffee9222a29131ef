package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "taskboard:invitations:"

// Publisher sends an event to every replica holding a subscription for the
// addressed user.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func Channel(userID string) string {
	return channelPrefix + strings.TrimSpace(userID)
}

// LocalBroker delivers straight into the in-process hub.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.UserID) == "" {
		return ErrInvalidUser
	}
	b.hub.Deliver(event)
	return nil
}

// RedisBroker publishes to a per-user redis channel and relays every
// invitation channel back into the local hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisBroker(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		hub:    hub,
		log:    log.Named("realtime.redis"),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.UserID) == "" {
		return ErrInvalidUser
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, Channel(event.UserID), payload).Err()
}

// Start subscribes to all invitation channels and returns once redis has
// confirmed the subscription.
func (b *RedisBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go b.relay(pubsub.Channel(), b.done)
	return nil
}

func (b *RedisBroker) relay(messages <-chan *redis.Message, done chan<- struct{}) {
	defer close(done)
	for msg := range messages {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.log.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		b.hub.Deliver(event)
	}
}

func (b *RedisBroker) Stop(ctx context.Context) error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub, b.done = nil, nil
	b.mu.Unlock()
	if pubsub == nil {
		return nil
	}

	err := pubsub.Close()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}
