package llm

import (
	"context"
	"encoding/json"
	"strings"

	xerrors "CircleLayer-Assistant/internal/errors"
)

// EmptyReply 在模型没有返回任何内容时使用。
const EmptyReply = "I apologize, but I could not generate a response."

// Request 描述一次自由问答的输入以及分类得到的上下文。
type Request struct {
	Message  string
	Intent   string
	Entities map[string]any
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc 允许使用普通函数实现 Client。
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete 实现 Client 接口。
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Unavailable 在未配置任何模型时使用，所有调用都返回 SERVICE_UNAVAILABLE。
type Unavailable struct{}

// Complete 实现 Client 接口。
func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", xerrors.New(xerrors.CodeServiceUnavailable, "completion service is not configured")
}

const basePrompt = `You are a helpful DeFi (Decentralized Finance) AI assistant built on the Circle Layer blockchain. You help users with:

1. Understanding DeFi concepts and terminology
2. Explaining blockchain and cryptocurrency basics
3. Providing information about the Circle Layer ecosystem
4. General crypto and DeFi education
5. Answering questions about wallet management, transactions, and security

Key information about Circle Layer:
- Circle Layer is a high-performance EVM-compatible blockchain
- Testnet RPC: https://testnet-rpc.circlelayer.com
- Explorer: https://explorer-testnet.circlelayer.com
- Chain ID: 28525
- Native token: CLAYER
- Faucet: https://faucet.circlelayer.com

The system handles specific DeFi operations automatically based on user intent. Your role is to provide educational content, explanations, and general assistance when the user asks general questions about DeFi, crypto, or blockchain technology.

Be helpful, informative, and always prioritize user security and best practices. Keep responses concise but comprehensive.`

// SystemPrompt 构造发送给模型的系统提示词，末尾附带 JSON 形式的用户上下文。
func SystemPrompt(req Request) string {
	context := map[string]any{"intent": req.Intent}
	if len(req.Entities) > 0 {
		context["entities"] = req.Entities
	}
	encoded, err := json.Marshal(context)
	if err != nil {
		encoded = []byte("{}")
	}

	var builder strings.Builder
	builder.WriteString(basePrompt)
	builder.WriteString("\n\nUser context: ")
	builder.Write(encoded)
	return builder.String()
}

// Unreachable 将提供方的错误包装为 SERVICE_UNAVAILABLE。
func Unreachable(provider string, err error) error {
	if err == nil {
		return nil
	}
	if xerrors.HasCode(err, xerrors.CodeServiceUnavailable) {
		return err
	}
	return xerrors.Wrap(xerrors.CodeServiceUnavailable, err, provider+" request failed")
}
