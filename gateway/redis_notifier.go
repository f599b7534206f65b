package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/utils"
)

// RedisNotifier publishes changes on a Redis pub/sub channel so every process
// sharing the database sees every write.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel, logger: utils.OrNop(logger)}
}

func (n *RedisNotifier) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	ps := n.rdb.Subscribe(ctx, n.channel)
	// wait for the subscription confirmation so no change published after we return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.logger.Warn("dropping malformed change", zap.String("channel", n.channel), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
