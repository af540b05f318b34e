package service

import (
	"context"

	"medai-go/internal/model"
)

// EventPublisher 发布轮次结束事件。由 pkg/kafka.Producer 实现。
type EventPublisher interface {
	PublishTurnEvent(ctx context.Context, event model.TurnEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishTurnEvent(context.Context, model.TurnEvent) error { return nil }

// NopPublisher 在未启用 Kafka 时使用。
var NopPublisher EventPublisher = nopPublisher{}
