package assistant

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"CircleLayer-Assistant/internal/catalog"
	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/intent"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/llm"
	"CircleLayer-Assistant/pkg/logger"
)

// Kind 描述响应的类别，界面据此选择展示样式。
type Kind string

const (
	KindBalance     Kind = "balance"
	KindTransaction Kind = "transaction"
	KindHistory     Kind = "history"
	KindGas         Kind = "gas"
	KindNetwork     Kind = "network"
	KindStaking     Kind = "staking"
	KindLiquidity   Kind = "liquidity"
	KindFarming     Kind = "farming"
	KindLending     Kind = "lending"
	KindGovernance  Kind = "governance"
	KindWallet      Kind = "wallet"
	KindProtocols   Kind = "protocols"
	KindHelp        Kind = "help"
	KindError       Kind = "error"
	KindAI          Kind = "ai"
)

// Response 是一次分发的结构化结果。Data 为可选的原始数据。
type Response struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// Dispatch 描述一次完成的分发，供审计与指标使用。
type Dispatch struct {
	SessionID string
	Message   string
	Intent    intent.Intent
	Kind      Kind
	Text      string
	Duration  time.Duration
	Panicked  bool
	Err       error
}

// Observer 在每次分发结束后被调用。
type Observer interface {
	ObserveDispatch(ctx context.Context, d Dispatch)
}

// ObserverFunc 允许使用普通函数实现 Observer。
type ObserverFunc func(ctx context.Context, d Dispatch)

// ObserveDispatch 实现 Observer 接口。
func (f ObserverFunc) ObserveDispatch(ctx context.Context, d Dispatch) { f(ctx, d) }

type sessionKey struct{}

// WithSession 将会话 ID 附加到上下文，分发记录会携带该 ID。
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFrom 读取上下文中的会话 ID。
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

const (
	defaultExplorerURL = "https://explorer-testnet.circlelayer.com"
	defaultRPCURL      = "https://testnet-rpc.circlelayer.com"
	faucetSiteURL      = "https://faucet.circlelayer.com"
	docsURL            = "https://docs.circlelayer.com"

	genericFailure = "I'm sorry, I encountered an error while processing your request. Please try again."
)

type request struct {
	text     string
	intent   intent.Intent
	entities intent.EntitySet
}

type handlerFunc func(ctx context.Context, req request) (Response, error)

// Assistant 协调意图分类、实体提取与各意图处理器。创建后不再修改，
// 可被多个 goroutine 并发调用。
type Assistant struct {
	classifier *intent.Classifier
	ledger     ledger.Client
	catalog    catalog.Provider
	completion llm.Client

	ledgerTimeout     time.Duration
	completionTimeout time.Duration
	explorerURL       string
	rpcURL            string
	historyLimit      int
	now               func() time.Time
	observers         []Observer
	log               *slog.Logger

	handlers map[intent.Intent]handlerFunc
}

// Option 定义可选的 Assistant 配置。
type Option func(*Assistant)

// WithLedgerTimeout 设置单次链上调用的超时时间，0 表示不限制。
func WithLedgerTimeout(timeout time.Duration) Option {
	return func(a *Assistant) {
		if timeout < 0 {
			timeout = 0
		}
		a.ledgerTimeout = timeout
	}
}

// WithCompletionTimeout 设置单次大模型调用的超时时间，0 表示不限制。
func WithCompletionTimeout(timeout time.Duration) Option {
	return func(a *Assistant) {
		if timeout < 0 {
			timeout = 0
		}
		a.completionTimeout = timeout
	}
}

// WithExplorerURL 设置区块浏览器地址，用于生成交易与地址链接。
func WithExplorerURL(url string) Option {
	return func(a *Assistant) {
		if url = strings.TrimRight(strings.TrimSpace(url), "/"); url != "" {
			a.explorerURL = url
		}
	}
}

// WithRPCURL 设置网络状态中展示的 RPC 地址。
func WithRPCURL(url string) Option {
	return func(a *Assistant) {
		if url = strings.TrimSpace(url); url != "" {
			a.rpcURL = url
		}
	}
}

// WithHistoryLimit 设置历史查询向链上请求的最大条数。
func WithHistoryLimit(limit int) Option {
	return func(a *Assistant) {
		if limit > 0 {
			a.historyLimit = limit
		}
	}
}

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
	}
}

// WithObserver 注册分发观察者，例如审计仓库与指标。
func WithObserver(obs ...Observer) Option {
	return func(a *Assistant) {
		for _, o := range obs {
			if o != nil {
				a.observers = append(a.observers, o)
			}
		}
	}
}

// WithLogger 替换默认日志记录器。
func WithLogger(log *slog.Logger) Option {
	return func(a *Assistant) {
		if log != nil {
			a.log = log
		}
	}
}

// New 创建 Assistant。catalog 与 completion 为空时分别使用内置目录与不可用的大模型。
func New(classifier *intent.Classifier, ledgerClient ledger.Client, provider catalog.Provider, completion llm.Client, opts ...Option) *Assistant {
	if classifier == nil {
		classifier = intent.NewClassifier(intent.DefaultRules())
	}
	if provider == nil {
		provider = catalog.NewStatic(catalog.Defaults())
	}
	if completion == nil {
		completion = llm.Unavailable{}
	}

	a := &Assistant{
		classifier:   classifier,
		ledger:       ledgerClient,
		catalog:      provider,
		completion:   completion,
		explorerURL:  defaultExplorerURL,
		rpcURL:       defaultRPCURL,
		historyLimit: 10,
		now:          time.Now,
		log:          logger.Named("assistant"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	a.handlers = map[intent.Intent]handlerFunc{
		intent.Balance:    a.handleBalance,
		intent.Send:       a.handleSend,
		intent.History:    a.handleHistory,
		intent.Gas:        a.handleGas,
		intent.Network:    a.handleNetwork,
		intent.Staking:    a.handleStaking,
		intent.Liquidity:  a.handleLiquidity,
		intent.Farming:    a.handleFarming,
		intent.Lending:    a.handleLending,
		intent.Governance: a.handleGovernance,
		intent.Faucet:     a.handleFaucet,
		intent.DeFi:       a.handleDeFi,
		intent.Address:    a.handleAddress,
		intent.Help:       a.handleHelp,
		intent.General:    a.handleGeneral,
	}
	return a
}

// Handle 处理一条用户消息并返回唯一的响应。该方法不会失败：
// 处理器中的错误与 panic 都会转换为 error 类型的响应。
func (a *Assistant) Handle(ctx context.Context, text string) Response {
	start := a.now()
	in := a.classifier.Classify(text)
	req := request{text: text, intent: in, entities: intent.Extract(text)}

	resp, panicked, err := a.dispatch(ctx, req)
	if err != nil {
		resp = Response{
			Text: genericFailure + "\n\nDetails: " + xerrors.Describe(err),
			Kind: KindError,
		}
	}

	d := Dispatch{
		SessionID: SessionFrom(ctx),
		Message:   text,
		Intent:    in,
		Kind:      resp.Kind,
		Text:      resp.Text,
		Duration:  a.now().Sub(start),
		Panicked:  panicked,
		Err:       err,
	}
	a.record(ctx, d)
	return resp
}

func (a *Assistant) dispatch(ctx context.Context, req request) (resp Response, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("%v", r)
			a.log.Error("handler panic recovered",
				slog.String("intent", req.intent.String()),
				slog.Any("panic", r))
		}
	}()

	handler, ok := a.handlers[req.intent]
	if !ok {
		handler = a.handleGeneral
	}
	resp, err = handler(ctx, req)
	return resp, false, err
}

func (a *Assistant) record(ctx context.Context, d Dispatch) {
	attrs := []any{
		slog.String("session_id", d.SessionID),
		slog.String("intent", d.Intent.String()),
		slog.String("kind", string(d.Kind)),
		slog.Duration("duration", d.Duration),
	}
	if d.Err != nil {
		attrs = append(attrs, slog.String("error", d.Err.Error()), slog.Bool("panicked", d.Panicked))
		a.log.Warn("dispatch failed", attrs...)
	} else {
		a.log.Debug("dispatch completed", attrs...)
	}
	logger.Audit().Info("dispatch", attrs...)

	for _, o := range a.observers {
		o.ObserveDispatch(ctx, d)
	}
}

// ledgerContext 为链上调用附加超时。
func (a *Assistant) ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.ledgerTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.ledgerTimeout)
}

func (a *Assistant) completionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.completionTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.completionTimeout)
}

// ledgerFailure 将超时统一为 NETWORK_UNAVAILABLE。
func ledgerFailure(err error) error {
	if err == nil {
		return nil
	}
	if stdErrors.Is(err, context.DeadlineExceeded) && !xerrors.HasCode(err, xerrors.CodeNetworkUnavailable) {
		return xerrors.Wrap(xerrors.CodeNetworkUnavailable, err, "Network request timed out")
	}
	return err
}

func (a *Assistant) requireLedger() error {
	if a.ledger == nil {
		return xerrors.New(xerrors.CodeNotInitialized, "Wallet not initialized")
	}
	return nil
}
