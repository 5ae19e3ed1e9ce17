package kafka

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter 是 SyncPublisher 用到的 kafka.Writer 方法子集。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SyncPublisher 把两个存储之间的不一致事件发送到 Kafka，供对账任务消费。
type SyncPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewSyncPublisher 创建一个新的 SyncPublisher 实例，复用客户端的 writer。
func NewSyncPublisher(client *KafkaClient) *SyncPublisher {
	return &SyncPublisher{writer: client.Writer, topic: client.Config.SyncTopic, now: time.Now}
}

// Report 将 SyncEvent 序列化为 JSON 并发送到 Kafka。消息键为命名空间，
// 同一用户的事件因此落在同一分区并保持顺序。
func (p *SyncPublisher) Report(ctx context.Context, event *models.SyncEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Namespace),
		Value: jsonData,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write sync event to kafka: %w", err)
	}
	return nil
}

var _ interfaces.SyncReporter = (*SyncPublisher)(nil)
