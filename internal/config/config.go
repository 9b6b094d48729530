package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"CircleLayer-Assistant/pkg/logger"
)

// DefaultPath 是未设置 CLAYER_CONFIG 时读取的配置文件。
const DefaultPath = "configs/assistant.json"

const defaultTemperature = 0.7

// Config 描述了助手在启动阶段需要加载的全部配置。
type Config struct {
	Server        ServerConfig        `json:"server"`
	Ledger        LedgerConfig        `json:"ledger"`
	Cache         CacheConfig         `json:"cache"`
	LLM           LLMConfig           `json:"llm"`
	Catalog       CatalogConfig       `json:"catalog"`
	Audit         AuditConfig         `json:"audit"`
	Tasks         TaskConfig          `json:"tasks"`
	Observability ObservabilityConfig `json:"observability"`
	Logging       logger.Config       `json:"logging"`
	Runtime       RuntimeConfig       `json:"runtime"`
}

// ServerConfig 控制 HTTP 服务的监听地址与跨域设置。
type ServerConfig struct {
	Address         string   `json:"address"`
	AllowedOrigins  []string `json:"allowed_origins"`
	ShutdownSeconds int      `json:"shutdown_seconds"`
}

// LedgerConfig 描述链访问、签名钱包与水龙头。
type LedgerConfig struct {
	ChainConfig    string `json:"chain_config"`
	DefaultChain   string `json:"default_chain"`
	RPCURL         string `json:"rpc_url"`
	PrivateKey     string `json:"private_key"`
	ExplorerURL    string `json:"explorer_url"`
	FaucetURL      string `json:"faucet_url"`
	ScanDepth      int    `json:"scan_depth"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回单次链上调用的超时时间。
func (l LedgerConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// CacheConfig 控制链上只读数据的缓存。
type CacheConfig struct {
	Driver     string      `json:"driver"`
	TTLSeconds int         `json:"ttl_seconds"`
	Redis      RedisConfig `json:"redis"`
}

// TTL 返回缓存有效期。
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig 是缓存与队列共用的 Redis 连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// LLMConfig 用于配置通用问答所使用的大模型。
type LLMConfig struct {
	Provider       string       `json:"provider"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	OpenAI         OpenAIConfig `json:"openai"`
	Gemini         GeminiConfig `json:"gemini"`
}

// Timeout 返回单次大模型调用的超时时间。
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`

	// Temperature 未配置时取 0.7，显式的 0 会保留。
	Temperature *float32 `json:"temperature,omitempty"`
}

// TemperatureValue 返回采样温度。
func (o OpenAIConfig) TemperatureValue() float32 {
	if o.Temperature == nil {
		return defaultTemperature
	}
	return *o.Temperature
}

// GeminiConfig 描述 Gemini 接口。
type GeminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// CatalogConfig 指定 DeFi 数据目录的覆盖文件。
type CatalogConfig struct {
	Path  string `json:"path"`
	Watch bool   `json:"watch"`
}

// AuditConfig 控制对话审计记录的存储位置。
type AuditConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	Path   string `json:"path"`
}

// TaskConfig 控制异步对话任务。
type TaskConfig struct {
	Store       string         `json:"store"`
	Queue       string         `json:"queue"`
	Workers     int            `json:"workers"`
	MaxRetries  int            `json:"max_retries"`
	QueueBuffer int            `json:"queue_buffer"`
	DynamoDB    DynamoDBConfig `json:"dynamodb"`
	Redis       RedisConfig    `json:"redis"`
	RabbitMQ    RabbitMQConfig `json:"rabbitmq"`
}

// DynamoDBConfig 描述任务表。
type DynamoDBConfig struct {
	Table  string `json:"table"`
	Region string `json:"region"`
}

// RabbitMQConfig 描述任务队列所使用的 RabbitMQ。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
	Prefetch   int    `json:"prefetch"`
}

// ObservabilityConfig 控制指标与告警。
type ObservabilityConfig struct {
	MetricsEnabled bool         `json:"metrics_enabled"`
	Alerts         AlertsConfig `json:"alerts"`
}

// AlertsConfig 描述告警 Webhook。
type AlertsConfig struct {
	WebhookURL     string `json:"webhook_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Path 返回配置文件路径，优先使用 CLAYER_CONFIG。
func Path() string {
	if p := strings.TrimSpace(os.Getenv("CLAYER_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// LoadDotEnv 读取 .env 文件中的环境变量，文件不存在时忽略。
// 已经存在的环境变量不会被覆盖。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("读取环境变量文件 %s 失败: %w", p, err)
		}
	}
	return nil
}

// Load 负责解析指定路径的 JSON 配置文件，并应用环境变量与默认值。
// 文件不存在时仅使用环境变量与默认值。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	var cfg Config
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// applyEnv 使用环境变量覆盖配置文件中的值。
func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CLAYER_RPC_URL", &c.Ledger.RPCURL},
		{"CLAYER_PRIVATE_KEY", &c.Ledger.PrivateKey},
		{"CLAYER_EXPLORER_URL", &c.Ledger.ExplorerURL},
		{"CLAYER_FAUCET_URL", &c.Ledger.FaucetURL},
		{"OPENAI_API_KEY", &c.LLM.OpenAI.APIKey},
		{"GEMINI_API_KEY", &c.LLM.Gemini.APIKey},
		{"CLAYER_LISTEN_ADDR", &c.Server.Address},
		{"CLAYER_AUDIT_DSN", &c.Audit.DSN},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownSeconds <= 0 {
		c.Server.ShutdownSeconds = 5
	}

	if c.Ledger.RPCURL == "" && c.Ledger.ChainConfig == "" {
		c.Ledger.RPCURL = "https://testnet-rpc.circlelayer.com"
	}
	if c.Ledger.ChainConfig != "" && !filepath.IsAbs(c.Ledger.ChainConfig) {
		c.Ledger.ChainConfig = filepath.Join(baseDir, c.Ledger.ChainConfig)
	}
	if c.Ledger.ExplorerURL == "" {
		c.Ledger.ExplorerURL = "https://explorer-testnet.circlelayer.com"
	}
	c.Ledger.ExplorerURL = strings.TrimRight(c.Ledger.ExplorerURL, "/")
	if c.Ledger.FaucetURL == "" {
		c.Ledger.FaucetURL = "https://faucet-api.circlelayer.com"
	}
	if c.Ledger.ScanDepth <= 0 {
		c.Ledger.ScanDepth = 100
	}
	if c.Ledger.TimeoutSeconds <= 0 {
		c.Ledger.TimeoutSeconds = 15
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 10
	}
	if c.Cache.Redis.Key == "" {
		c.Cache.Redis.Key = "clayer:cache"
	}

	if c.LLM.Provider == "" {
		switch {
		case c.LLM.OpenAI.APIKey != "":
			c.LLM.Provider = "openai"
		case c.LLM.Gemini.APIKey != "":
			c.LLM.Provider = "gemini"
		default:
			c.LLM.Provider = "none"
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 30
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-3.5-turbo"
	}
	if c.LLM.OpenAI.MaxTokens <= 0 {
		c.LLM.OpenAI.MaxTokens = 800
	}
	if c.LLM.OpenAI.Temperature == nil {
		t := float32(defaultTemperature)
		c.LLM.OpenAI.Temperature = &t
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = "gemini-2.5-flash"
	}

	if c.Catalog.Path != "" && !filepath.IsAbs(c.Catalog.Path) {
		c.Catalog.Path = filepath.Join(baseDir, c.Catalog.Path)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Audit.Driver == "" {
		c.Audit.Driver = "file"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.jsonl")
	}

	if c.Tasks.Store == "" {
		c.Tasks.Store = "memory"
	}
	if c.Tasks.Queue == "" {
		c.Tasks.Queue = "memory"
	}
	if c.Tasks.Workers <= 0 {
		c.Tasks.Workers = 2
	}
	if c.Tasks.MaxRetries <= 0 {
		c.Tasks.MaxRetries = 3
	}
	if c.Tasks.QueueBuffer <= 0 {
		c.Tasks.QueueBuffer = 64
	}
	if c.Tasks.Redis.Key == "" {
		c.Tasks.Redis.Key = "clayer:jobs"
	}
	if c.Tasks.RabbitMQ.Queue == "" {
		c.Tasks.RabbitMQ.Queue = "clayer.jobs"
	}
	if c.Tasks.RabbitMQ.Prefetch <= 0 {
		c.Tasks.RabbitMQ.Prefetch = c.Tasks.Workers
	}
	if c.Tasks.DynamoDB.Table == "" {
		c.Tasks.DynamoDB.Table = "clayer-jobs"
	}

	if c.Observability.Alerts.TimeoutSeconds <= 0 {
		c.Observability.Alerts.TimeoutSeconds = 5
	}
}
