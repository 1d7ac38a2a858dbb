package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了智能体在启动阶段需要加载的核心配置。
type Config struct {
	Wallet    WalletConfig    `json:"wallet"`
	Chain     ChainConfig     `json:"chain"`
	LLM       LLMConfig       `json:"llm"`
	Social    SocialConfig    `json:"social"`
	Storage   StorageConfig   `json:"storage"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
	Alerting  AlertingConfig  `json:"alerting"`
	Persona   PersonaConfig   `json:"persona"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// WalletConfig 控制钱包私钥的来源。私钥只从环境变量读取，
// 未设置时每次启动生成新钱包。
type WalletConfig struct {
	PrivateKeyEnv string `json:"private_key_env"`
}

// ChainConfig 描述链客户端注册表的配置。Definitions 指向
// chains.yaml，单链部署也可以只填 RPCURL。
type ChainConfig struct {
	Definitions        string  `json:"definitions"`
	Default            string  `json:"default"`
	RPCURL             string  `json:"rpc_url"`
	GasPriceMultiplier float64 `json:"gas_price_multiplier"`
}

// LLMConfig 配置两类模型端点：决策走兼容 Chat Completions 协议的
// 推理端点，打分、发帖和向量化走 OpenAI。
type LLMConfig struct {
	Completion CompletionConfig `json:"completion"`
	OpenAI     OpenAIConfig     `json:"openai"`
}

// CompletionConfig 描述决策推理端点。
type CompletionConfig struct {
	APIKeyEnv string `json:"api_key_env"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
}

// OpenAIConfig 描述 OpenAI 端点。
type OpenAIConfig struct {
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model"`
}

// SocialConfig 描述社交平台接入参数。
type SocialConfig struct {
	BaseURL  string `json:"base_url"`
	TokenEnv string `json:"token_env"`
	Username string `json:"username"`
}

// StorageConfig 统一描述 MySQL、Redis 等后端的连接信息。
// Driver 决定主存储，MemoryDriver 可以单独把长期记忆切到 Redis。
type StorageConfig struct {
	Driver       string      `json:"driver"`
	DataDir      string      `json:"data_dir"`
	MemoryDriver string      `json:"memory_driver"`
	MySQL        MySQLConfig `json:"mysql"`
	Redis        RedisConfig `json:"redis"`
}

// MySQLConfig 描述 MySQL 连接参数。
type MySQLConfig struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Key        string `json:"key"`
	MaxEntries int64  `json:"max_entries"`
}

// PipelineConfig 控制管道的阈值与预算。
type PipelineConfig struct {
	// MinBalanceEther 是钱包决策的激活门槛，余额不高于它时跳过决策。
	MinBalanceEther string `json:"min_balance_ether"`
	// StoreThreshold 是写入长期记忆的显著性下限。
	StoreThreshold float64 `json:"store_threshold"`
	// PublishThreshold 是发布帖子的显著性下限。
	PublishThreshold float64 `json:"publish_threshold"`
	// DecisionAttempts 是决策解析循环的尝试次数上限。
	DecisionAttempts int `json:"decision_attempts"`
	// FollowThreshold 是关注判定的分数线，严格大于才关注。
	FollowThreshold float64 `json:"follow_threshold"`
	// TokenAddress 非空时启用 ERC-20 转账决策。
	TokenAddress string `json:"token_address"`
	// RecentPosts 是每轮回看的自有帖子数量。
	RecentPosts int `json:"recent_posts"`
	// TopMemories 是长期记忆检索的条数。
	TopMemories int `json:"top_memories"`
}

// SchedulerConfig 控制随机化的活跃窗口。时间单位见字段名。
type SchedulerConfig struct {
	MaxActivationDelayMinutes int `json:"max_activation_delay_minutes"`
	MinActiveMinutes          int `json:"min_active_minutes"`
	MaxActiveMinutes          int `json:"max_active_minutes"`
	MinIntervalSeconds        int `json:"min_interval_seconds"`
	MaxIntervalSeconds        int `json:"max_interval_seconds"`
}

// LoggingConfig 镜像 pkg/logger 的配置结构。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	Audit       struct {
		Enabled    bool   `json:"enabled"`
		Path       string `json:"path"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"audit"`
}

// AlertingConfig 描述告警分发配置。AMQPURL 为空时只保留日志渠道。
type AlertingConfig struct {
	AMQPURL string `json:"amqp_url"`
	Queue   string `json:"queue"`
}

// PersonaConfig 指向人格设定文件。
type PersonaConfig struct {
	Path      string `json:"path"`
	MaxTraits int    `json:"max_traits"`
}

// MetricsConfig 控制指标端点。Address 为空时不启动。
type MetricsConfig struct {
	Address string `json:"address"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Wallet.PrivateKeyEnv == "" {
		c.Wallet.PrivateKeyEnv = "AGENT_PRIVATE_KEY"
	}

	if c.Chain.GasPriceMultiplier <= 0 {
		c.Chain.GasPriceMultiplier = 1.1
	}
	if c.Chain.Definitions != "" && !filepath.IsAbs(c.Chain.Definitions) {
		c.Chain.Definitions = filepath.Join(baseDir, c.Chain.Definitions)
	}

	if c.LLM.Completion.APIKeyEnv == "" {
		c.LLM.Completion.APIKeyEnv = "LLM_API_KEY"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Social.TokenEnv == "" {
		c.Social.TokenEnv = "SOCIAL_API_TOKEN"
	}
	if c.Social.Username == "" {
		c.Social.Username = "openagent"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if !filepath.IsAbs(c.Storage.DataDir) {
		c.Storage.DataDir = filepath.Join(baseDir, c.Storage.DataDir)
	}

	if c.Pipeline.MinBalanceEther == "" {
		c.Pipeline.MinBalanceEther = "0.3"
	}
	if c.Pipeline.StoreThreshold <= 0 {
		c.Pipeline.StoreThreshold = 7
	}
	if c.Pipeline.PublishThreshold <= 0 {
		c.Pipeline.PublishThreshold = 3
	}
	if c.Pipeline.PublishThreshold > c.Pipeline.StoreThreshold {
		c.Pipeline.PublishThreshold = c.Pipeline.StoreThreshold
	}
	if c.Pipeline.DecisionAttempts <= 0 {
		c.Pipeline.DecisionAttempts = 2
	}
	if c.Pipeline.FollowThreshold <= 0 {
		c.Pipeline.FollowThreshold = 0.98
	}
	if c.Pipeline.RecentPosts <= 0 {
		c.Pipeline.RecentPosts = 10
	}
	if c.Pipeline.TopMemories <= 0 {
		c.Pipeline.TopMemories = 5
	}

	if c.Scheduler.MaxActivationDelayMinutes <= 0 {
		c.Scheduler.MaxActivationDelayMinutes = 30
	}
	if c.Scheduler.MinActiveMinutes <= 0 {
		c.Scheduler.MinActiveMinutes = 15
	}
	if c.Scheduler.MaxActiveMinutes <= c.Scheduler.MinActiveMinutes {
		c.Scheduler.MaxActiveMinutes = c.Scheduler.MinActiveMinutes + 5
	}
	if c.Scheduler.MinIntervalSeconds <= 0 {
		c.Scheduler.MinIntervalSeconds = 30
	}
	if c.Scheduler.MaxIntervalSeconds <= c.Scheduler.MinIntervalSeconds {
		c.Scheduler.MaxIntervalSeconds = 180
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Alerting.Queue == "" {
		c.Alerting.Queue = "openagent.alerts"
	}

	if c.Persona.Path != "" && !filepath.IsAbs(c.Persona.Path) {
		c.Persona.Path = filepath.Join(baseDir, c.Persona.Path)
	}
	if c.Persona.MaxTraits <= 0 {
		c.Persona.MaxTraits = 3
	}
}
