package mysql

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"OpenAgent-Chain/internal/memory"
	"OpenAgent-Chain/internal/storage"
)

// maxCached 是文件仓库在内存中保留的记录上限，磁盘文件不受限。
const maxCached = 512

// FileStore 使用本地 JSON 行文件模拟 MySQL 的效果，方便迭代开发。
// 帖子与记忆各占一个追加写的日志文件，账号保存在独立的 JSON 文件里。
type FileStore struct {
	mu        sync.RWMutex
	postsFile string
	memFile   string
	acctFile  string
	posts     []storage.PostRecord
	memories  []memory.Record
	accounts  map[string]storage.AccountRecord
	nextAcct  int64
}

// NewFileStore 创建文件仓库并恢复磁盘上的历史记录。
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	store := &FileStore{
		postsFile: filepath.Join(dataDir, "posts.log"),
		memFile:   filepath.Join(dataDir, "memories.log"),
		acctFile:  filepath.Join(dataDir, "accounts.json"),
		accounts:  make(map[string]storage.AccountRecord),
		nextAcct:  1,
	}
	if err := store.loadFromDisk(); err != nil {
		return nil, err
	}
	return store, nil
}

// SavePost 以追加写的方式记录一条帖子。
func (f *FileStore) SavePost(_ context.Context, record storage.PostRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := appendLine(f.postsFile, record); err != nil {
		return err
	}
	f.posts = prependPost(f.posts, record)
	return nil
}

// RecentPosts 返回最近的帖子，按时间倒序排列。
func (f *FileStore) RecentPosts(_ context.Context, limit int) ([]storage.PostRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.posts) {
		limit = len(f.posts)
	}
	results := make([]storage.PostRecord, limit)
	copy(results, f.posts[:limit])
	return results, nil
}

// AppendMemory 以追加写的方式记录一条长期记忆。
func (f *FileStore) AppendMemory(_ context.Context, record memory.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := appendLine(f.memFile, record); err != nil {
		return err
	}
	f.memories = prependMemory(f.memories, record)
	return nil
}

// RecentMemories 返回最近的长期记忆，新的在前。
func (f *FileStore) RecentMemories(_ context.Context, limit int) ([]memory.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.memories) {
		limit = len(f.memories)
	}
	results := make([]memory.Record, limit)
	copy(results, f.memories[:limit])
	return results, nil
}

// FindOrCreateAccount 按用户名查找账号，不存在则创建并落盘。
func (f *FileStore) FindOrCreateAccount(_ context.Context, username string) (storage.AccountRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if acct, ok := f.accounts[username]; ok {
		return acct, nil
	}

	acct := storage.AccountRecord{
		ID:        f.nextAcct,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	f.nextAcct++
	f.accounts[username] = acct

	if err := f.flushAccounts(); err != nil {
		delete(f.accounts, username)
		f.nextAcct--
		return storage.AccountRecord{}, err
	}
	return acct, nil
}

// Close 对文件仓库是空操作，文件在每次写入后即已落盘。
func (f *FileStore) Close() error { return nil }

func (f *FileStore) flushAccounts() error {
	encoded, err := json.MarshalIndent(f.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化账号文件失败: %w", err)
	}
	if err := os.WriteFile(f.acctFile, encoded, 0o644); err != nil {
		return fmt.Errorf("写入账号文件失败: %w", err)
	}
	return nil
}

func (f *FileStore) loadFromDisk() error {
	if err := readLines(f.postsFile, func(line []byte) {
		var record storage.PostRecord
		if json.Unmarshal(line, &record) == nil {
			f.posts = prependPost(f.posts, record)
		}
	}); err != nil {
		return err
	}

	if err := readLines(f.memFile, func(line []byte) {
		var record memory.Record
		if json.Unmarshal(line, &record) == nil {
			f.memories = prependMemory(f.memories, record)
		}
	}); err != nil {
		return err
	}

	data, err := os.ReadFile(f.acctFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取账号文件失败: %w", err)
	}
	if err := json.Unmarshal(data, &f.accounts); err != nil {
		return fmt.Errorf("解析账号文件失败: %w", err)
	}
	for _, acct := range f.accounts {
		if acct.ID >= f.nextAcct {
			f.nextAcct = acct.ID + 1
		}
	}
	return nil
}

func appendLine(path string, record any) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开数据日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入数据日志失败: %w", err)
	}
	return nil
}

func readLines(path string, handle func(line []byte)) error {
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取数据日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		handle(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析数据日志失败: %w", err)
	}
	return nil
}

func prependPost(records []storage.PostRecord, record storage.PostRecord) []storage.PostRecord {
	records = append([]storage.PostRecord{record}, records...)
	if len(records) > maxCached {
		records = records[:maxCached]
	}
	return records
}

func prependMemory(records []memory.Record, record memory.Record) []memory.Record {
	records = append([]memory.Record{record}, records...)
	if len(records) > maxCached {
		records = records[:maxCached]
	}
	return records
}

var _ storage.Store = (*FileStore)(nil)
