package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"OpenAgent-Chain/internal/config"
	"OpenAgent-Chain/internal/llm/completion"
	"OpenAgent-Chain/internal/llm/openai"
	"OpenAgent-Chain/internal/memory"
	"OpenAgent-Chain/internal/observability/alerting"
	"OpenAgent-Chain/internal/observability/metrics"
	"OpenAgent-Chain/internal/persona"
	"OpenAgent-Chain/internal/pipeline"
	"OpenAgent-Chain/internal/scheduler"
	"OpenAgent-Chain/internal/social"
	"OpenAgent-Chain/internal/storage"
	"OpenAgent-Chain/internal/storage/mysql"
	"OpenAgent-Chain/internal/storage/redis"
	"OpenAgent-Chain/internal/wallet"
	"OpenAgent-Chain/internal/web3/provider"
	"OpenAgent-Chain/pkg/logger"

	"github.com/joho/godotenv"
)

// main 是智能体守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("openagentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 不存在时静默跳过，生产环境直接用进程环境变量。
	_ = godotenv.Load()

	configPath := os.Getenv("OPENAGENT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "openagent.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	// 钱包：优先环境变量私钥，否则每次启动生成全新钱包。
	agentWallet, err := loadWallet(cfg.Wallet)
	if err != nil {
		return err
	}
	logger.L().Info("智能体钱包就绪", "address", agentWallet.Address().Hex())

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	chainClient, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}

	decider, err := completion.NewClient(completion.Config{
		APIKey:  os.Getenv(cfg.LLM.Completion.APIKeyEnv),
		BaseURL: cfg.LLM.Completion.BaseURL,
		Model:   cfg.LLM.Completion.Model,
	})
	if err != nil {
		return fmt.Errorf("初始化决策模型失败: %w", err)
	}

	composer, err := openai.NewClient(openai.Config{
		APIKey:         os.Getenv(cfg.LLM.OpenAI.APIKeyEnv),
		BaseURL:        cfg.LLM.OpenAI.BaseURL,
		Model:          cfg.LLM.OpenAI.Model,
		EmbeddingModel: cfg.LLM.OpenAI.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("初始化创作模型失败: %w", err)
	}

	socialClient, err := social.NewHTTPClient(social.Config{
		BaseURL: cfg.Social.BaseURL,
		Token:   os.Getenv(cfg.Social.TokenEnv),
	})
	if err != nil {
		return fmt.Errorf("初始化社交平台客户端失败: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	memStore, memCloser, err := openMemoryStore(cfg.Storage, store)
	if err != nil {
		return err
	}
	if memCloser != nil {
		defer memCloser()
	}

	agentPersona := persona.Default()
	if cfg.Persona.Path != "" {
		agentPersona, err = persona.Load(cfg.Persona.Path, cfg.Persona.MaxTraits)
		if err != nil {
			return err
		}
	}

	alerts, alertCloser, err := buildAlerts(cfg.Alerting)
	if err != nil {
		return err
	}
	if alertCloser != nil {
		defer alertCloser()
	}

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	pipe, err := pipeline.New(cfg.Pipeline, cfg.Social.Username, pipeline.Deps{
		Store:    store,
		Memories: memStore,
		Social:   socialClient,
		Chain:    chainClient,
		Wallet:   agentWallet,
		Decider:  decider,
		Composer: composer,
		Embedder: composer,
		Persona:  agentPersona,
		Alerts:   alerts,
	})
	if err != nil {
		return err
	}

	return scheduler.New(pipe, cfg.Scheduler).Run(ctx)
}

func loadWallet(cfg config.WalletConfig) (*wallet.Wallet, error) {
	if hexKey := strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv)); hexKey != "" {
		return wallet.FromHex(hexKey)
	}
	return wallet.Generate()
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "", "file":
		return mysql.NewFileStore(cfg.DataDir)
	case "mysql":
		return mysql.NewSQLStore(ctx, mysql.Config{
			DSN:          cfg.MySQL.DSN,
			MaxOpenConns: cfg.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.MySQL.MaxIdleConns,
		})
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Driver)
	}
}

// openMemoryStore 返回长期记忆存储。默认复用主存储，
// 配置 redis 时切到独立的 Redis 列表。
func openMemoryStore(cfg config.StorageConfig, fallback storage.Store) (memory.Store, func(), error) {
	switch cfg.MemoryDriver {
	case "":
		return fallback, nil, nil
	case "redis":
		store, err := redis.NewMemoryStore(redis.Config{
			Address:    cfg.Redis.Address,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Key:        cfg.Redis.Key,
			MaxEntries: cfg.Redis.MaxEntries,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("未知的记忆存储驱动: %s", cfg.MemoryDriver)
	}
}

func buildAlerts(cfg config.AlertingConfig) (alerting.Dispatcher, func(), error) {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	var closer func()

	if cfg.AMQPURL != "" {
		amqpNotifier, err := alerting.NewAMQPNotifier(alerting.AMQPConfig{
			URL:     cfg.AMQPURL,
			Queue:   cfg.Queue,
			Durable: true,
		})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, amqpNotifier)
		closer = func() { _ = amqpNotifier.Close() }
	}

	return alerting.NewFanout(notifiers...), closer, nil
}
