// Package app 负责把配置装配成可运行的助手实例，守护进程与 Lambda 入口共用。
package app

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"CircleLayer-Assistant/internal/api"
	"CircleLayer-Assistant/internal/assistant"
	"CircleLayer-Assistant/internal/cache"
	"CircleLayer-Assistant/internal/catalog"
	"CircleLayer-Assistant/internal/config"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/ledger/provider"
	"CircleLayer-Assistant/internal/llm"
	"CircleLayer-Assistant/internal/llm/gemini"
	"CircleLayer-Assistant/internal/llm/openai"
	"CircleLayer-Assistant/internal/observability/alerting"
	"CircleLayer-Assistant/internal/observability/metrics"
	"CircleLayer-Assistant/internal/session"
	"CircleLayer-Assistant/internal/storage/audit"
	"CircleLayer-Assistant/internal/task"
	"CircleLayer-Assistant/pkg/logger"
)

// App 持有装配完成的全部组件。
type App struct {
	Config    *config.Config
	Chains    *provider.Registry
	Ledger    ledger.Client
	Catalog   *catalog.Static
	Watcher   *catalog.Watcher
	Audit     audit.Repository
	Assistant *assistant.Assistant
	Sessions  *session.Manager
	Tasks     *task.Service
	Processor *task.Processor
	Server    *api.Server

	log     *slog.Logger
	closers []func() error
}

// Option 调整装配过程，主要用于测试替换外部依赖。
type Option func(*options)

type options struct {
	ledger     ledger.Client
	completion llm.Client
}

// WithLedger 使用给定的链客户端，跳过链注册表。
func WithLedger(client ledger.Client) Option {
	return func(o *options) { o.ledger = client }
}

// WithCompletion 使用给定的大模型客户端。
func WithCompletion(client llm.Client) Option {
	return func(o *options) { o.completion = client }
}

// Build 根据配置创建全部组件。出错时已创建的资源会被释放。
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, stdErrors.New("配置不能为空")
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	a := &App{Config: cfg, log: logger.Named("app")}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	explorerURL := cfg.Ledger.ExplorerURL
	if o.ledger != nil {
		a.Ledger = o.ledger
	} else {
		registry, err := provider.NewRegistry(ctx, cfg.Ledger)
		if err != nil {
			return nil, err
		}
		a.Chains = registry
		a.closers = append(a.closers, func() error { registry.Close(); return nil })

		chain, err := registry.Default()
		if err != nil {
			return nil, err
		}
		if chain.ExplorerURL != "" {
			explorerURL = chain.ExplorerURL
		}

		store, err := openCache(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		a.Ledger = a.cacheLedger(chain.Client, store, cfg.Cache.TTL())
		a.log.Info("ledger ready",
			slog.String("chain", chain.Name),
			slog.String("cache", cfg.Cache.Driver),
			slog.Bool("wallet", chain.Client.Address() != ""))
	}

	completion := o.completion
	if completion == nil {
		completion, err = openCompletion(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
	}

	if err := a.buildCatalog(cfg.Catalog); err != nil {
		return nil, err
	}

	repo, err := audit.Open(ctx, cfg.Audit)
	if err != nil {
		return nil, err
	}
	a.Audit = repo
	a.closers = append(a.closers, repo.Close)

	assistantOpts := []assistant.Option{
		assistant.WithLedgerTimeout(cfg.Ledger.Timeout()),
		assistant.WithCompletionTimeout(cfg.LLM.Timeout()),
		assistant.WithExplorerURL(explorerURL),
		assistant.WithObserver(auditObserver(repo), metricsObserver()),
	}
	if cfg.Ledger.RPCURL != "" {
		assistantOpts = append(assistantOpts, assistant.WithRPCURL(cfg.Ledger.RPCURL))
	}
	a.Assistant = assistant.New(nil, a.Ledger, a.Catalog, completion, assistantOpts...)
	a.Sessions = session.NewManager(session.WithGreeting(assistant.Welcome, string(assistant.KindHelp)))

	if err := a.buildTasks(ctx, cfg); err != nil {
		return nil, err
	}

	a.Server = api.NewServer(cfg.Server.Address, api.Dependencies{
		Assistant: a.Assistant,
		Sessions:  a.Sessions,
		Tasks:     a.Tasks,
		Audit:     a.Audit,
		Ledger:    a.Ledger,
	},
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		api.WithShutdownTimeout(time.Duration(cfg.Server.ShutdownSeconds)*time.Second),
		api.WithMetrics(cfg.Observability.MetricsEnabled),
	)
	return a, nil
}

// cacheLedger 为链客户端加上缓存。缓存由 App 关闭，链客户端归注册表所有。
func (a *App) cacheLedger(client ledger.Client, store cache.Cache, ttl time.Duration) ledger.Client {
	if store != nil {
		a.closers = append(a.closers, store.Close)
	}
	return ledger.NewCachedClient(client, store, ttl)
}

func (a *App) buildCatalog(cfg config.CatalogConfig) error {
	a.Catalog = catalog.NewStatic(catalog.Defaults())
	if cfg.Path == "" {
		return nil
	}
	snap, err := catalog.LoadFile(cfg.Path)
	if err != nil {
		return err
	}
	a.Catalog.Replace(snap)
	if !cfg.Watch {
		return nil
	}
	watcher, err := catalog.NewWatcher(cfg.Path, a.Catalog)
	if err != nil {
		return err
	}
	a.Watcher = watcher
	a.closers = append(a.closers, func() error { watcher.Stop(); return nil })
	return nil
}

func (a *App) buildTasks(ctx context.Context, cfg *config.Config) error {
	store, err := task.OpenStore(ctx, cfg.Tasks)
	if err != nil {
		return err
	}
	queue, err := task.OpenQueue(ctx, cfg.Tasks)
	if err != nil {
		_ = store.Close()
		return err
	}
	a.Tasks = task.NewService(store, queue, cfg.Tasks.MaxRetries)
	a.closers = append(a.closers, a.Tasks.Close)

	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if url := strings.TrimSpace(cfg.Observability.Alerts.WebhookURL); url != "" {
		timeout := time.Duration(cfg.Observability.Alerts.TimeoutSeconds) * time.Second
		notifiers = append(notifiers, alerting.NewWebhookNotifier(url, timeout))
	}

	a.Processor = task.NewProcessor(
		task.AssistantExecutor{Assistant: a.Assistant},
		store, queue, queue,
		task.WithWorkerCount(cfg.Tasks.Workers),
		task.WithAlertDispatcher(alerting.NewFanout(notifiers...)),
	)
	return nil
}

// Close 按创建的逆序释放资源。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stdErrors.Join(errs...)
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		return cache.NewRedis(ctx, cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Key,
		})
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("不支持的缓存驱动: %s", cfg.Driver)
	}
}

func openCompletion(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return llm.Unavailable{}, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.TemperatureValue(),
			Timeout:     cfg.Timeout(),
		})
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.Provider)
	}
}

// auditObserver 将每次分发写入审计仓库。写入失败只记录日志。
func auditObserver(repo audit.Repository) assistant.Observer {
	log := logger.Named("audit")
	return assistant.ObserverFunc(func(ctx context.Context, d assistant.Dispatch) {
		record := audit.Record{
			SessionID:      d.SessionID,
			Message:        d.Message,
			Intent:         d.Intent.String(),
			Kind:           string(d.Kind),
			Response:       d.Text,
			DurationMillis: d.Duration.Milliseconds(),
			CreatedAt:      time.Now().UTC(),
		}
		if d.Err != nil {
			record.Error = d.Err.Error()
		}
		if err := repo.Save(context.WithoutCancel(ctx), record); err != nil {
			log.Warn("save audit record failed", slog.Any("error", err))
		}
	})
}

func metricsObserver() assistant.Observer {
	return assistant.ObserverFunc(func(_ context.Context, d assistant.Dispatch) {
		metrics.ObserveDispatch(d.Intent.String(), string(d.Kind), d.Duration, d.Err != nil)
	})
}
