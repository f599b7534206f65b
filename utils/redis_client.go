package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/hexfeed/config"
)

var (
	redisClient *redis.Client
	redisMu     sync.RWMutex
)

// InitRedis builds the shared Redis client. Without a configured host it leaves
// the client nil and every Redis-backed helper uses its in-memory fallback.
func InitRedis(cfg config.AppConfig) *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	if cfg.RedisHost == "" {
		redisClient = nil
		return nil
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	// ping only to surface misconfiguration early; fallbacks still apply per call
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("redis ping failed addr=%s err=%v", redisClient.Options().Addr, err)
	}
	return redisClient
}

// SetRedis replaces the shared client; tests use it with miniredis.
func SetRedis(rc *redis.Client) {
	redisMu.Lock()
	redisClient = rc
	redisMu.Unlock()
}

// GetRedis returns the shared client, or nil when Redis is not configured.
func GetRedis() *redis.Client {
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}
