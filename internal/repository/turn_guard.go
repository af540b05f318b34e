package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

func inflightKey(sessionID string) string {
	return fmt.Sprintf("session:%s:inflight", sessionID)
}

// TurnGuard 保证同一会话同一时刻最多只有一个未完成的轮次。
type TurnGuard interface {
	// Acquire 尝试占用会话，返回 false 表示已有轮次在等待响应。
	Acquire(ctx context.Context, sessionID string) (bool, error)
	Release(ctx context.Context, sessionID string) error
	Held(ctx context.Context, sessionID string) (bool, error)
}

type redisTurnGuard struct {
	redisClient *redis.Client
	// ttl 需要大于模型调用超时，请求进程崩溃时占用会自动过期
	ttl time.Duration
}

// NewTurnGuard 创建基于 Redis SETNX 的 TurnGuard。
func NewTurnGuard(redisClient *redis.Client, ttl time.Duration) TurnGuard {
	return &redisTurnGuard{redisClient: redisClient, ttl: ttl}
}

func (g *redisTurnGuard) Acquire(ctx context.Context, sessionID string) (bool, error) {
	ok, err := g.redisClient.SetNX(ctx, inflightKey(sessionID), time.Now().UnixMilli(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire turn guard: %w", err)
	}
	return ok, nil
}

func (g *redisTurnGuard) Release(ctx context.Context, sessionID string) error {
	if err := g.redisClient.Del(ctx, inflightKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to release turn guard: %w", err)
	}
	return nil
}

func (g *redisTurnGuard) Held(ctx context.Context, sessionID string) (bool, error) {
	n, err := g.redisClient.Exists(ctx, inflightKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check turn guard: %w", err)
	}
	return n > 0, nil
}
