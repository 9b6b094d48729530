package openai

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"CircleLayer-Assistant/internal/llm"
)

const (
	defaultModelName = goopenai.GPT3Dot5Turbo
	defaultMaxTokens = 800
	defaultTimeout   = 30 * time.Second
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Client 通过 go-openai SDK 调用 OpenAI 提供的大模型能力。
type Client struct {
	api         *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// go-openai 会省略值为 0 的 temperature，用最小正数表达确定性采样。
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	return &Client{
		api:         goopenai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}, nil
}

// Complete 将用户原文与分类上下文发送给 OpenAI 并返回回复文本。
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt(req)},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Message},
		},
	})
	if err != nil {
		return "", llm.Unreachable("OpenAI", err)
	}
	if len(resp.Choices) == 0 {
		return llm.EmptyReply, nil
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return llm.EmptyReply, nil
	}
	return content, nil
}
