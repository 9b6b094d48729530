// Package gemini adapts Google's Gemini models to the llm.Client interface.
package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"CircleLayer-Assistant/internal/llm"
)

const (
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 30 * time.Second
)

// Config describes how to reach the Gemini API.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int32
	Timeout   time.Duration
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client answers free-form questions through Models.GenerateContent.
type Client struct {
	models    generator
	model     string
	maxTokens int32
	timeout   time.Duration
}

// NewClient creates a Gemini backed completion client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Gemini API Key")
	}

	clientCfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	api, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, llm.Unreachable("Gemini", err)
	}
	return newWithGenerator(api.Models, cfg), nil
}

func newWithGenerator(models generator, cfg Config) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{models: models, model: model, maxTokens: cfg.MaxTokens, timeout: timeout}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.SystemPrompt(req), genai.RoleUser),
	}
	if c.maxTokens > 0 {
		genCfg.MaxOutputTokens = c.maxTokens
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(req.Message), genCfg)
	if err != nil {
		return "", llm.Unreachable("Gemini", err)
	}
	if resp == nil {
		return llm.EmptyReply, nil
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return llm.EmptyReply, nil
	}
	return text, nil
}
