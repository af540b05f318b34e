// Package repository 提供了会话临时存储的数据访问层实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"medai-go/internal/model"
)

// ErrNotFound 表示会话中不存在请求的数据。
var ErrNotFound = errors.New("not found in session store")

func intakeKey(sessionID string) string {
	return fmt.Sprintf("session:%s:intakeData", sessionID)
}

// IntakeRepository 定义了问诊记录的存取接口。
type IntakeRepository interface {
	Save(ctx context.Context, sessionID string, record *model.IntakeRecord) error
	Get(ctx context.Context, sessionID string) (*model.IntakeRecord, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisIntakeRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewIntakeRepository 创建一个新的 IntakeRepository 实例。
func NewIntakeRepository(redisClient *redis.Client, ttl time.Duration) IntakeRepository {
	return &redisIntakeRepository{redisClient: redisClient, ttl: ttl}
}

// Save 以单个 SET 命令整体写入记录，不存在部分写入。
func (r *redisIntakeRepository) Save(ctx context.Context, sessionID string, record *model.IntakeRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal intake record: %w", err)
	}
	if err := r.redisClient.Set(ctx, intakeKey(sessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save intake record: %w", err)
	}
	return nil
}

// Get 读取问诊记录，不存在时返回 ErrNotFound。
func (r *redisIntakeRepository) Get(ctx context.Context, sessionID string) (*model.IntakeRecord, error) {
	jsonData, err := r.redisClient.Get(ctx, intakeKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intake record: %w", err)
	}
	var record model.IntakeRecord
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intake record: %w", err)
	}
	return &record, nil
}

func (r *redisIntakeRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, intakeKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete intake record: %w", err)
	}
	return nil
}
