package social

import (
	"context"
	"fmt"
	"time"
)

// Post 是社交平台上的一条帖子或通知。管道只关心文本内容，
// 其余字段用于持久化与日志。
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// String 把帖子渲染成提取器与提示词使用的文本形式。
func (p Post) String() string {
	if p.Author == "" {
		return p.Content
	}
	return fmt.Sprintf("@%s: %s", p.Author, p.Content)
}

// Texts 把帖子列表压平成纯文本列表。
func Texts(posts []Post) []string {
	if len(posts) == 0 {
		return nil
	}
	texts := make([]string, 0, len(posts))
	for _, p := range posts {
		texts = append(texts, p.String())
	}
	return texts
}

// Client 定义智能体对社交平台的全部出站操作。
// 管道和测试只依赖这个接口，平台细节收在具体实现里。
type Client interface {
	// Timeline 拉取平台时间线上最近的帖子。
	Timeline(ctx context.Context, limit int) ([]Post, error)
	// Notifications 拉取针对智能体账号的新通知（回复、提及）。
	Notifications(ctx context.Context) ([]Post, error)
	// Publish 发布一条帖子并返回平台侧 ID。发布失败或拿不到 ID
	// 返回 PUBLISH_FAILURE。
	Publish(ctx context.Context, content string) (string, error)
	// Follow 关注指定用户名的账号。
	Follow(ctx context.Context, username string) error
}
