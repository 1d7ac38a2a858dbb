package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
)

const defaultHTTPTimeout = 30 * time.Second

// Config 描述了访问社交平台 API 所需的信息。
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPClient 通过 REST 接口访问社交平台。
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient 根据配置创建平台客户端。
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("未提供社交平台地址")
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("未提供社交平台访问令牌")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Timeline 拉取时间线最近的帖子。
func (c *HTTPClient) Timeline(ctx context.Context, limit int) ([]Post, error) {
	path := "/timeline"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var posts []Post
	if err := c.get(ctx, path, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Notifications 拉取新的回复与提及。
func (c *HTTPClient) Notifications(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.get(ctx, "/notifications", &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Publish 发布帖子并返回平台侧 ID。
func (c *HTTPClient) Publish(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "帖子内容不能为空")
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/posts", map[string]string{"content": content}, &decoded); err != nil {
		return "", xerrors.Wrap(xerrors.CodePublishFailure, err, "发布帖子失败")
	}
	if decoded.ID == "" {
		return "", xerrors.New(xerrors.CodePublishFailure, "平台未返回帖子 ID")
	}
	return decoded.ID, nil
}

// Follow 关注指定用户。
func (c *HTTPClient) Follow(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "用户名不能为空")
	}
	return c.post(ctx, "/follows", map[string]string{"username": username}, nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("构建平台请求失败: %w", err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化平台请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("构建平台请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeNetworkFailure, err, "请求社交平台失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(xerrors.CodeNetworkFailure,
			fmt.Sprintf("社交平台返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析平台响应失败: %w", err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
