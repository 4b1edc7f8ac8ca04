package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"eventhub/internal/domain"
)

// BroadcastChannel carries events for every connected client.
const BroadcastChannel = "eventhub:broadcast"

// UserChannel returns the private channel of a user.
func UserChannel(userID string) string {
	return "eventhub:user:" + userID
}

// NewRedisClient parses url, applies pool settings and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisPusher publishes push events over Redis pub/sub. Redis does not retain
// messages, so events published while no subscriber listens are lost.
type RedisPusher struct {
	client *redis.Client
	logger *slog.Logger
}

var (
	_ domain.Pusher         = (*RedisPusher)(nil)
	_ domain.PushSubscriber = (*RedisPusher)(nil)
)

func NewRedisPusher(client *redis.Client, logger *slog.Logger) *RedisPusher {
	return &RedisPusher{client: client, logger: logger}
}

func (p *RedisPusher) EmitToAll(ctx context.Context, event string, payload any) error {
	return p.publish(ctx, BroadcastChannel, event, payload)
}

func (p *RedisPusher) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	return p.publish(ctx, UserChannel(userID), event, payload)
}

func (p *RedisPusher) publish(ctx context.Context, channel, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	msg, err := json.Marshal(domain.PushMessage{Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}
	if err := p.client.Publish(ctx, channel, string(msg)).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func (p *RedisPusher) Subscribe(ctx context.Context, userID string) (<-chan domain.PushMessage, error) {
	sub := p.client.Subscribe(ctx, UserChannel(userID), BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan domain.PushMessage, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg domain.PushMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					p.logger.WarnContext(ctx, "dropping malformed push message", "channel", m.Channel, "err", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
