package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 事件类型
const (
	TypePartCreated      = "part_created"
	TypePartAssembled    = "part_assembled"
	TypePartDisassembled = "part_disassembled"
	TypePartAttached     = "part_attached"
	TypePartDetached     = "part_detached"
	TypePartTransferred  = "part_transferred"
)

// Event 状态变更通知（追加式，供外部审计日志消费）
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Owner      string    `json:"owner,omitempty"`
	PartNumber int64     `json:"part_number,omitempty"`
	PartID     uint64    `json:"part_id"`
	AssemblyID uint64    `json:"assembly_id,omitempty"`
	ChildIDs   []uint64  `json:"child_ids,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New 构造事件并填充ID和时间戳
func New(eventType string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now(),
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher 通过Redis pub/sub发布事件
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher 创建Redis事件发布器
func NewRedisPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

// Publish 发布事件。发布失败只记录日志，不阻断业务操作。
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.Uint64("part_id", event.PartID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// MemoryPublisher 进程内事件记录器（测试用）
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher 创建内存事件记录器
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events 返回已记录事件的副本
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Reset 清空已记录事件
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
