package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"OpenAgent-Chain/internal/memory"
	"OpenAgent-Chain/internal/storage"

	_ "github.com/go-sql-driver/mysql"
)

// Config 描述 MySQL 连接池参数。
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore 使用真实的 MySQL 数据库持久化帖子、记忆和账号。
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore 创建连接池并初始化数据表。
func NewSQLStore(ctx context.Context, cfg Config) (*SQLStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	store := &SQLStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        username VARCHAR(255) NOT NULL UNIQUE,
        created_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS posts (
        id VARCHAR(36) PRIMARY KEY,
        platform_id VARCHAR(255) DEFAULT '',
        account_id BIGINT NOT NULL,
        content TEXT NOT NULL,
        significance DOUBLE NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL,
        INDEX idx_posts_created_at (created_at)
)`,
		`CREATE TABLE IF NOT EXISTS memories (
        id VARCHAR(36) PRIMARY KEY,
        content TEXT NOT NULL,
        embedding MEDIUMTEXT NOT NULL,
        significance DOUBLE NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL,
        INDEX idx_memories_created_at (created_at)
)`,
	}

	for _, schema := range schemas {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("初始化数据表失败: %w", err)
		}
	}
	return nil
}

// SavePost 将帖子记录写入 MySQL。
func (s *SQLStore) SavePost(ctx context.Context, record storage.PostRecord) error {
	const stmt = `INSERT INTO posts (id, platform_id, account_id, content, significance, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.PlatformID,
		record.AccountID,
		record.Content,
		record.Significance,
		record.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("写入帖子记录失败: %w", err)
	}
	return nil
}

// RecentPosts 查询最近的若干条帖子。
func (s *SQLStore) RecentPosts(ctx context.Context, limit int) ([]storage.PostRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, platform_id, account_id, content, significance, created_at
        FROM posts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询帖子记录失败: %w", err)
	}
	defer rows.Close()

	var records []storage.PostRecord
	for rows.Next() {
		var record storage.PostRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.PlatformID, &record.AccountID, &record.Content, &record.Significance, &createdAt); err != nil {
			return nil, fmt.Errorf("解析帖子记录失败: %w", err)
		}
		record.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历帖子记录失败: %w", err)
	}
	return records, nil
}

// AppendMemory 将长期记忆写入 MySQL，向量以 JSON 文本存储。
func (s *SQLStore) AppendMemory(ctx context.Context, record memory.Record) error {
	embedding, err := json.Marshal(record.Embedding)
	if err != nil {
		return fmt.Errorf("序列化记忆向量失败: %w", err)
	}

	const stmt = `INSERT INTO memories (id, content, embedding, significance, created_at)
        VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.Content,
		string(embedding),
		record.Significance,
		record.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("写入记忆记录失败: %w", err)
	}
	return nil
}

// RecentMemories 查询最近的若干条记忆。
func (s *SQLStore) RecentMemories(ctx context.Context, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, embedding, significance, created_at
        FROM memories ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询记忆记录失败: %w", err)
	}
	defer rows.Close()

	var records []memory.Record
	for rows.Next() {
		var record memory.Record
		var embedding string
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.Content, &embedding, &record.Significance, &createdAt); err != nil {
			return nil, fmt.Errorf("解析记忆记录失败: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &record.Embedding); err != nil {
			return nil, fmt.Errorf("解析记忆向量失败: %w", err)
		}
		record.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历记忆记录失败: %w", err)
	}
	return records, nil
}

// FindOrCreateAccount 按用户名查找账号，不存在则插入新行。
func (s *SQLStore) FindOrCreateAccount(ctx context.Context, username string) (storage.AccountRecord, error) {
	record, err := s.findAccount(ctx, username)
	if err == nil {
		return record, nil
	}
	if err != sql.ErrNoRows {
		return storage.AccountRecord{}, fmt.Errorf("查询账号失败: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, created_at) VALUES (?, ?)`, username, now.Unix())
	if err != nil {
		// 并发创建时回退到再查一次。
		if record, retryErr := s.findAccount(ctx, username); retryErr == nil {
			return record, nil
		}
		return storage.AccountRecord{}, fmt.Errorf("创建账号失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storage.AccountRecord{}, fmt.Errorf("读取账号 ID 失败: %w", err)
	}
	return storage.AccountRecord{ID: id, Username: username, CreatedAt: now}, nil
}

func (s *SQLStore) findAccount(ctx context.Context, username string) (storage.AccountRecord, error) {
	var record storage.AccountRecord
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM accounts WHERE username = ?`, username).
		Scan(&record.ID, &record.Username, &createdAt)
	if err != nil {
		return storage.AccountRecord{}, err
	}
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	return record, nil
}

// Close 关闭底层数据库连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ storage.Store = (*SQLStore)(nil)
