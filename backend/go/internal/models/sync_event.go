package models

import "time"

// SyncEventType 定义了两个存储之间不一致状态的类型。
type SyncEventType string

const (
	// SyncOrphanedVectors 表示向量已写入但元数据行缺失。
	SyncOrphanedVectors SyncEventType = "ORPHANED_VECTORS"
	// SyncPartialDelete 表示删除操作只在一侧成功。
	SyncPartialDelete SyncEventType = "PARTIAL_DELETE"
)

// SyncEvent 定义了发送到 Kafka 的一致性事件结构，供对账任务消费。
type SyncEvent struct {
	Type       SyncEventType `json:"type"`
	UserID     string        `json:"user_id"`
	SourceID   string        `json:"source_id,omitempty"`
	Namespace  string        `json:"namespace"`
	FailedSide string        `json:"failed_side,omitempty"`
	Written    int           `json:"written,omitempty"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
}
