package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TaskCache 任务状态缓存（按任务 ID 键控，带 TTL，避免进程内 map 无界增长）
type TaskCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTaskCache 创建 TaskCache 实例
func NewTaskCache(addr, password string, db int, ttl time.Duration) (*TaskCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &TaskCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// TaskStatus 任务状态快照（对外轮询的数据面）
type TaskStatus struct {
	TaskID          string `json:"task_id"`
	Status          string `json:"status"`
	Marketplace     string `json:"marketplace"`
	Brand           string `json:"brand"`
	TotalOrders     int    `json:"total_orders"`
	ProcessedOrders int    `json:"processed_orders"`
	NewOrders       int    `json:"new_orders"`
	ReplacedOrders  int    `json:"replaced_orders"`
	FailedRows      int    `json:"failed_rows"`
	DegradedChunks  int    `json:"degraded_chunks"`
	// 各阶段耗时（毫秒）
	StageTimings map[string]int64 `json:"stage_timings,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	UpdatedAt    int64            `json:"updated_at"`
}

func taskKey(taskID string) string {
	return "ordersync:task:" + taskID
}

// Set 写入任务状态快照（带 TTL）
func (c *TaskCache) Set(ctx context.Context, st *TaskStatus) error {
	st.UpdatedAt = time.Now().Unix()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal task status failed: %w", err)
	}

	if err := c.client.Set(ctx, taskKey(st.TaskID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set task status failed: %w", err)
	}

	return nil
}

// Get 读取任务状态快照（不存在返回 nil, nil，由调用方回源 MySQL）
func (c *TaskCache) Get(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := c.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task status failed: %w", err)
	}

	var st TaskStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal task status failed: %w", err)
	}

	return &st, nil
}

// SweepNotification 清洗完成通知消息
type SweepNotification struct {
	TaskID      string `json:"task_id"`
	PIC         string `json:"pic"`
	Marketplace string `json:"marketplace"`
	Status      string `json:"status"` // COMPLETED/FAILED
	Timestamp   int64  `json:"timestamp"`
}

// PublishSweepComplete 发布清洗完成通知
func (c *TaskCache) PublishSweepComplete(ctx context.Context, channel string, notification *SweepNotification) error {
	msgJSON, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := c.client.Publish(ctx, channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Subscribe 订阅通知频道（测试用）
func (c *TaskCache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.client.Subscribe(ctx, channel)
}

// Close 关闭 Redis 连接
func (c *TaskCache) Close() error {
	return c.client.Close()
}
