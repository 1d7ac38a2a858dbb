package pipeline

import (
	"context"
	"fmt"

	"OpenAgent-Chain/internal/config"
	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/extract"
	"OpenAgent-Chain/internal/llm"
	"OpenAgent-Chain/internal/memory"
	"OpenAgent-Chain/internal/observability/alerting"
	"OpenAgent-Chain/internal/observability/metrics"
	"OpenAgent-Chain/internal/persona"
	"OpenAgent-Chain/internal/retry"
	"OpenAgent-Chain/internal/social"
	"OpenAgent-Chain/internal/storage"
	"OpenAgent-Chain/internal/transfer"
	"OpenAgent-Chain/internal/wallet"
	"OpenAgent-Chain/internal/web3"
	"OpenAgent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deps 汇总管道依赖的全部协作方，由 cmd 层完成装配。
type Deps struct {
	Store    storage.Store
	Memories memory.Store
	Social   social.Client
	Chain    web3.Client
	Wallet   *wallet.Wallet
	Decider  llm.Client
	Composer llm.Client
	Embedder llm.Embedder
	Persona  *persona.Persona
	Alerts   alerting.Dispatcher
}

// Pipeline 串联一轮完整的智能体行为：看通知、做转账与关注决策、
// 生成记忆与新帖子。单个步骤失败只影响自身，本轮其余步骤照常执行。
type Pipeline struct {
	store    storage.Store
	social   social.Client
	chain    web3.Client
	wallet   *wallet.Wallet
	engine   *transfer.Engine
	executor *transfer.Executor
	follow   *social.FollowEngine
	memories *memory.Engine
	composer llm.Client
	persona  *persona.Persona
	alerts   alerting.Dispatcher

	username         string
	minBalance       decimal.Decimal
	policy           retry.Policy
	token            common.Address
	hasToken         bool
	storeThreshold   float64
	publishThreshold float64
	recentPosts      int
	topMemories      int
}

// New 根据配置和依赖装配管道。
func New(cfg config.PipelineConfig, username string, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置存储仓库")
	}
	if deps.Social == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置社交平台客户端")
	}
	if deps.Chain == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置链客户端")
	}
	if deps.Wallet == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置钱包")
	}
	if deps.Decider == nil || deps.Composer == nil || deps.Embedder == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置模型客户端")
	}

	minBalance, err := decimal.NewFromString(cfg.MinBalanceEther)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析余额门槛失败")
	}

	memStore := deps.Memories
	if memStore == nil {
		memStore = deps.Store
	}
	pers := deps.Persona
	if pers == nil {
		pers = persona.Default()
	}

	p := &Pipeline{
		store:            deps.Store,
		social:           deps.Social,
		chain:            deps.Chain,
		wallet:           deps.Wallet,
		engine:           transfer.NewEngine(deps.Decider),
		executor:         transfer.NewExecutor(deps.Chain, deps.Wallet),
		follow:           social.NewFollowEngine(deps.Decider, cfg.FollowThreshold),
		memories:         memory.NewEngine(deps.Composer, deps.Embedder, memStore),
		composer:         deps.Composer,
		persona:          pers,
		alerts:           deps.Alerts,
		username:         username,
		minBalance:       minBalance,
		policy:           retry.Policy{MaxAttempts: cfg.DecisionAttempts},
		storeThreshold:   cfg.StoreThreshold,
		publishThreshold: cfg.PublishThreshold,
		recentPosts:      cfg.RecentPosts,
		topMemories:      cfg.TopMemories,
	}

	if cfg.TokenAddress != "" {
		if !common.IsHexAddress(cfg.TokenAddress) {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "代币合约地址非法: "+cfg.TokenAddress)
		}
		p.token = common.HexToAddress(cfg.TokenAddress)
		p.hasToken = true
	}
	return p, nil
}

// RunCycle 执行一轮完整的管道。除装配错误外不向上抛错，
// 步骤失败记日志、计数并告警后继续。
func (p *Pipeline) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	log := logger.L().With("cycle_id", cycleID)
	log.Info("管道开始")

	var recentPosts []storage.PostRecord
	p.step(ctx, cycleID, "recent_posts", func() error {
		var err error
		recentPosts, err = p.store.RecentPosts(ctx, p.recentPosts)
		return err
	})

	var notifications []social.Post
	p.step(ctx, cycleID, "notifications", func() error {
		var err error
		notifications, err = p.social.Notifications(ctx)
		return err
	})

	var timeline []social.Post
	p.step(ctx, cycleID, "timeline", func() error {
		var err error
		timeline, err = p.social.Timeline(ctx, p.recentPosts)
		return err
	})

	postTexts := make([]string, 0, len(recentPosts))
	for _, rec := range recentPosts {
		postTexts = append(postTexts, rec.Content)
	}
	notifTexts := social.Texts(notifications)
	// 外部上下文 = 通知 + 时间线，供记忆与创作消费；
	// 转账与关注决策只看通知。
	externalTexts := append(append([]string(nil), notifTexts...), social.Texts(timeline)...)

	if len(notifTexts) > 0 {
		p.step(ctx, cycleID, "wallet_native", func() error {
			return p.nativeTransferCycle(ctx, notifTexts)
		})
		if p.hasToken {
			p.step(ctx, cycleID, "wallet_token", func() error {
				return p.tokenTransferCycle(ctx, notifTexts)
			})
		}
		p.step(ctx, cycleID, "follow", func() error {
			return p.followCycle(ctx, notifTexts)
		})
	}

	p.contentCycle(ctx, cycleID, postTexts, externalTexts)

	metrics.ObserveCycle()
	snap := metrics.Read()
	log.Info("管道结束",
		"cycles", snap.Cycles,
		"step_failures", snap.StepFailures,
		"transfers_confirmed", snap.TransfersConfirmed,
		"transfers_failed", snap.TransfersFailed)
}

// step 执行并隔离一个管道步骤：失败记日志、计数，必要时告警。
func (p *Pipeline) step(ctx context.Context, cycleID, name string, fn func() error) bool {
	err := fn()
	metrics.ObserveStep(name, err)
	if err == nil {
		return true
	}

	logger.L().Error("管道步骤失败",
		"cycle_id", cycleID,
		"step", name,
		"code", string(xerrors.CodeOf(err)),
		"error", err)
	if p.alerts != nil && xerrors.ShouldAlert(err) {
		if notifyErr := p.alerts.Notify(ctx, alerting.FromError(cycleID, name, err)); notifyErr != nil {
			logger.L().Warn("告警发送失败", "cycle_id", cycleID, "error", notifyErr)
		}
	}
	return false
}

// nativeTransferCycle 在余额过线时跑一轮原生币转账决策。
// 决策、解析与执行绑在同一个重试预算里：解析失败重新决策，
// 预算耗尽静默放弃。
func (p *Pipeline) nativeTransferCycle(ctx context.Context, notifTexts []string) error {
	balance, err := p.chain.NativeBalance(ctx, p.wallet.Address())
	if err != nil {
		return err
	}
	if balance.Cmp(p.minBalance) <= 0 {
		logger.L().Info("余额未过线，跳过转账决策",
			"balance", balance.String(), "threshold", p.minBalance.String())
		return nil
	}

	candidates := extract.FromTexts(notifTexts)
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		raw, err := p.engine.DecideNative(ctx, notifTexts, candidates, balance)
		if err != nil {
			return err
		}
		entries, err := transfer.ParseDecision(raw)
		if err != nil {
			return err
		}
		results, err := p.executor.ExecuteAll(ctx, entries)
		for _, result := range results {
			metrics.ObserveTransfer(result.Err)
		}
		return err
	})
	if err != nil && xerrors.CodeOf(err) == xerrors.CodeMalformedDecision {
		// 重试预算耗尽，放弃本轮转账。
		logger.L().Warn("转账决策始终无法解析，放弃本轮", "error", err)
		return nil
	}
	return err
}

// tokenTransferCycle 跑一轮 ERC-20 转账决策，余额为零直接跳过。
func (p *Pipeline) tokenTransferCycle(ctx context.Context, notifTexts []string) error {
	tokenBalance, err := p.chain.TokenBalance(ctx, p.wallet.Address(), p.token)
	if err != nil {
		return err
	}
	if tokenBalance == nil || tokenBalance.Sign() <= 0 {
		logger.L().Info("代币余额为零，跳过代币决策", "token", p.token.Hex())
		return nil
	}

	candidates := extract.FromTexts(notifTexts)
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		raw, err := p.engine.DecideToken(ctx, notifTexts, candidates, tokenBalance, p.token)
		if err != nil {
			return err
		}
		entries, err := transfer.ParseDecision(raw)
		if err != nil {
			return err
		}
		results, err := p.executor.ExecuteAll(ctx, entries)
		for _, result := range results {
			metrics.ObserveTransfer(result.Err)
		}
		return err
	})
	if err != nil && xerrors.CodeOf(err) == xerrors.CodeMalformedDecision {
		logger.L().Warn("代币决策始终无法解析，放弃本轮", "error", err)
		return nil
	}
	return err
}

// followCycle 跑一轮关注决策，与转账共用同一重试模式。
func (p *Pipeline) followCycle(ctx context.Context, notifTexts []string) error {
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		raw, err := p.follow.Decide(ctx, notifTexts)
		if err != nil {
			return err
		}
		decisions, err := social.ParseFollowDecisions(raw)
		if err != nil {
			return err
		}
		return p.follow.Apply(ctx, p.social, decisions)
	})
	if err != nil && xerrors.CodeOf(err) == xerrors.CodeMalformedDecision {
		logger.L().Warn("关注决策始终无法解析，放弃本轮", "error", err)
		return nil
	}
	return err
}

// contentCycle 串联记忆生成、帖子创作、打分、存储与发布。
// 前置步骤失败时跳过依赖它的后续步骤。
func (p *Pipeline) contentCycle(ctx context.Context, cycleID string, postTexts, externalTexts []string) {
	var summary string
	if ok := p.step(ctx, cycleID, "short_term_memory", func() error {
		var err error
		summary, err = p.memories.Summarize(ctx, postTexts, externalTexts)
		return err
	}); !ok {
		return
	}

	var embedding []float32
	p.step(ctx, cycleID, "embedding", func() error {
		var err error
		embedding, err = p.memories.Embed(ctx, summary)
		return err
	})

	var related []memory.Record
	if len(embedding) > 0 {
		p.step(ctx, cycleID, "long_term_memory", func() error {
			var err error
			related, err = p.memories.Relevant(ctx, embedding, p.topMemories)
			return err
		})
	}

	var content string
	if ok := p.step(ctx, cycleID, "compose", func() error {
		var err error
		content, err = p.composePost(ctx, summary, related, postTexts, externalTexts)
		return err
	}); !ok {
		return
	}

	var score float64
	if ok := p.step(ctx, cycleID, "significance", func() error {
		var err error
		score, err = p.scoreSignificance(ctx, content)
		return err
	}); !ok {
		return
	}
	logger.L().Info("新帖子已生成", "cycle_id", cycleID, "significance", score)

	if score >= p.storeThreshold {
		p.step(ctx, cycleID, "remember", func() error {
			contentEmbedding, err := p.memories.Embed(ctx, content)
			if err != nil {
				return err
			}
			return p.memories.Remember(ctx, content, contentEmbedding, score)
		})
	}

	if score >= p.publishThreshold {
		p.step(ctx, cycleID, "publish", func() error {
			platformID, err := p.social.Publish(ctx, content)
			if err != nil {
				return err
			}
			account, err := p.store.FindOrCreateAccount(ctx, p.username)
			if err != nil {
				return fmt.Errorf("获取账号失败: %w", err)
			}
			return p.store.SavePost(ctx, newPostRecord(account.ID, platformID, content, score))
		})
	}
}
