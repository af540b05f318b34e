// Package database 管理外部存储的连接。
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"medai-go/internal/config"
	"medai-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。会话存储不可用时服务无法工作，因此连接失败直接返回错误。
func InitRedis(cfg config.RedisConfig) error {
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info("Redis client connected successfully")
	return nil
}

// CloseRedis 关闭 Redis 连接池。
func CloseRedis() {
	if RDB == nil {
		return
	}
	if err := RDB.Close(); err != nil {
		log.Error("failed to close redis client", err)
	}
}
