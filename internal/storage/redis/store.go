// Package redis 提供基于 Redis list 的长期记忆驱动，
// 适合不想维护 MySQL 的部署。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"OpenAgent-Chain/internal/memory"

	"github.com/redis/go-redis/v9"
)

// Config 描述 Redis 连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
	// MaxEntries 是记忆列表保留的最大长度，超出部分从尾部裁剪。
	MaxEntries int64
}

// MemoryStore 使用 Redis list 保存长期记忆，新记录 LPUSH 到表头。
type MemoryStore struct {
	client *redis.Client
	key    string
	max    int64
}

// NewMemoryStore 创建 Redis 记忆仓库。
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	key := cfg.Key
	if key == "" {
		key = "openagent:memories"
	}
	max := cfg.MaxEntries
	if max <= 0 {
		max = 4096
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &MemoryStore{client: client, key: key, max: max}, nil
}

// AppendMemory 把记忆序列化后推到表头，并裁剪超长部分。
func (s *MemoryStore) AppendMemory(ctx context.Context, record memory.Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记忆失败: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, encoded)
	pipe.LTrim(ctx, s.key, 0, s.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Redis 写入记忆失败: %w", err)
	}
	return nil
}

// RecentMemories 读取表头的至多 limit 条记忆，新的在前。
func (s *MemoryStore) RecentMemories(ctx context.Context, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	values, err := s.client.LRange(ctx, s.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("Redis 读取记忆失败: %w", err)
	}

	records := make([]memory.Record, 0, len(values))
	for _, value := range values {
		var record memory.Record
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Close 关闭 Redis 连接。
func (s *MemoryStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ memory.Store = (*MemoryStore)(nil)
