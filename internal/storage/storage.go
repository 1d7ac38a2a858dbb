// Package storage 定义智能体持久化数据的公共结构与契约，
// 具体驱动见 mysql 与 redis 子包。
package storage

import (
	"context"
	"time"

	"OpenAgent-Chain/internal/memory"
)

// PostRecord 是智能体发布过的一条帖子的落库结构。
type PostRecord struct {
	ID           string    `json:"id"`
	PlatformID   string    `json:"platform_id"`
	AccountID    int64     `json:"account_id"`
	Content      string    `json:"content"`
	Significance float64   `json:"significance"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountRecord 是智能体自身的账号行。
type AccountRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// PostStore 持久化帖子记录。
type PostStore interface {
	// SavePost 追加一条帖子记录。
	SavePost(ctx context.Context, record PostRecord) error
	// RecentPosts 返回最近的至多 limit 条帖子，新的在前。
	RecentPosts(ctx context.Context, limit int) ([]PostRecord, error)
}

// AccountStore 维护智能体账号行。
type AccountStore interface {
	// FindOrCreateAccount 按用户名查找账号，不存在则创建。
	FindOrCreateAccount(ctx context.Context, username string) (AccountRecord, error)
}

// Store 聚合管道需要的全部持久化能力。
type Store interface {
	PostStore
	AccountStore
	memory.Store
	Close() error
}
