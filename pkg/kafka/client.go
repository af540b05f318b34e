// Package kafka 提供了向 Kafka 发布轮次事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"medai-go/internal/config"
	"medai-go/internal/model"
	"medai-go/pkg/log"
)

// messageWriter 是 kafka.Writer 的最小子集，便于在测试中替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把 TurnEvent 序列化为 JSON 写入配置的主题。
type Producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	// 事件量很小，默认 1s 的批量等待会拖慢每个轮次
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &Producer{writer: w}
}

// PublishTurnEvent 发送一个轮次事件，以会话 ID 作为分区 key 保证同一会话内有序。
func (p *Producer) PublishTurnEvent(ctx context.Context, event model.TurnEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to publish turn event: %w", err)
	}
	return nil
}

// Close 刷新并关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}
