package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"medai-go/internal/model"
)

func conversationKey(sessionID, intakeID string) string {
	return fmt.Sprintf("session:%s:conversation:%s", sessionID, intakeID)
}

// ConversationRepository 定义了对话历史记录的操作接口。每段历史只属于一条问诊记录。
type ConversationRepository interface {
	GetConversationHistory(ctx context.Context, sessionID, intakeID string) ([]model.ChatMessage, error)
	UpdateConversationHistory(ctx context.Context, sessionID, intakeID string, messages []model.ChatMessage) error
	DeleteConversation(ctx context.Context, sessionID, intakeID string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	maxMessages int
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration, maxMessages int) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl, maxMessages: maxMessages}
}

// GetConversationHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetConversationHistory(ctx context.Context, sessionID, intakeID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(sessionID, intakeID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil // No history yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// UpdateConversationHistory 在 Redis 中更新对话历史记录，只保留最近 maxMessages 条。
func (r *redisConversationRepository) UpdateConversationHistory(ctx context.Context, sessionID, intakeID string, messages []model.ChatMessage) error {
	if r.maxMessages > 0 && len(messages) > r.maxMessages {
		messages = messages[len(messages)-r.maxMessages:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationKey(sessionID, intakeID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

func (r *redisConversationRepository) DeleteConversation(ctx context.Context, sessionID, intakeID string) error {
	if err := r.redisClient.Del(ctx, conversationKey(sessionID, intakeID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation history: %w", err)
	}
	return nil
}
