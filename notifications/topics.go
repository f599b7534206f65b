// Package notifications keeps the push topic subscriptions of this installation.
// Delivering the pushes is left to an external service that reads the topic members.
package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/utils"
)

// Topics stores which topics an installation is subscribed to. With a Redis
// client it keeps two sets per subscription so both directions can be listed;
// without one it falls back to process memory.
type Topics struct {
	rdb            *redis.Client
	installationID string
	logger         *zap.Logger

	mu  sync.Mutex
	mem map[string]struct{}
}

func NewTopics(rdb *redis.Client, installationID string, logger *zap.Logger) *Topics {
	return &Topics{
		rdb:            rdb,
		installationID: installationID,
		logger:         utils.OrNop(logger),
		mem:            make(map[string]struct{}),
	}
}

func installationKey(id string) string { return "topics:installation:" + id }
func membersKey(topic string) string   { return "topics:members:" + topic }

func (t *Topics) Subscribe(ctx context.Context, topic string) error {
	if t.rdb == nil {
		t.mu.Lock()
		t.mem[topic] = struct{}{}
		t.mu.Unlock()
		return nil
	}
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, installationKey(t.installationID), topic)
		pipe.SAdd(ctx, membersKey(topic), t.installationID)
		return nil
	})
	if err != nil {
		t.logger.Warn("topic subscribe failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

func (t *Topics) Unsubscribe(ctx context.Context, topic string) error {
	if t.rdb == nil {
		t.mu.Lock()
		delete(t.mem, topic)
		t.mu.Unlock()
		return nil
	}
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, installationKey(t.installationID), topic)
		pipe.SRem(ctx, membersKey(topic), t.installationID)
		return nil
	})
	if err != nil {
		t.logger.Warn("topic unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("unsubscribe from %s: %w", topic, err)
	}
	return nil
}

func (t *Topics) IsSubscribed(ctx context.Context, topic string) (bool, error) {
	if t.rdb == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		_, ok := t.mem[topic]
		return ok, nil
	}
	ok, err := t.rdb.SIsMember(ctx, installationKey(t.installationID), topic).Result()
	if err != nil {
		return false, fmt.Errorf("read subscription %s: %w", topic, err)
	}
	return ok, nil
}

// Members lists the installations subscribed to topic.
func (t *Topics) Members(ctx context.Context, topic string) ([]string, error) {
	if t.rdb == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.mem[topic]; ok {
			return []string{t.installationID}, nil
		}
		return nil, nil
	}
	return t.rdb.SMembers(ctx, membersKey(topic)).Result()
}
