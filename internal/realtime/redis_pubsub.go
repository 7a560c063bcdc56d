package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "eduevent:live:"

type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub carries live events between instances.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

var (
	_ Publisher  = (*RedisPubSub)(nil)
	_ Subscriber = (*RedisPubSub)(nil)
)

func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

func channel(eventID uuid.UUID) string {
	return channelPrefix + eventID.String()
}

// PublishEvent publishes to the event's channel.
func (r *RedisPubSub) PublishEvent(ctx context.Context, eventID uuid.UUID, name string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: name, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel(eventID), body).Err()
}

// SubscribeEvent calls handler for every message on the event's channel until
// cancel is called. ctx bounds the subscribe handshake.
func (r *RedisPubSub) SubscribeEvent(ctx context.Context, eventID uuid.UUID, handler func(name string, payload []byte)) (cancel func(), err error) {
	pubsub := r.client.Subscribe(ctx, channel(eventID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	listenCtx, cancelListen := context.WithCancel(context.Background())
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-listenCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("decode live message", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	return cancelListen, nil
}
