package assistant

import (
	"context"
	stdErrors "errors"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/llm"
)

// Welcome 是新会话的问候语。
const Welcome = "👋 **Welcome to Circle Layer DeFi Assistant!**\n\n" +
	"Your intelligent companion for DeFi operations on Circle Layer blockchain.\n\n" +
	"**Quick Start:**\n" +
	"• \"What's my balance?\" - Check wallet funds\n" +
	"• \"Claim faucet\" - Get free CLAYER tokens\n" +
	"• \"Send X CLAYER to 0x...\" - Transfer tokens\n" +
	"• \"Show staking options\" - Earn rewards\n" +
	"• \"Explain yield farming\" - Learn DeFi\n\n" +
	"**Need testnet tokens?** Just say \"faucet\" or \"claim faucet\"! 🚰\n\n" +
	"**Just chat naturally - I understand what you need!** 🚀"

const helpText = "🤖 **DeFi AI Assistant - Complete Guide**\n\n" +
	"**💰 Wallet Operations**\n• \"What's my balance?\"\n• \"Send 1.5 CLAYER to 0x...\"\n• \"Show my address\"\n• \"Transaction history\"\n\n" +
	"**🚰 Faucet Operations**\n• \"Claim faucet\"\n• \"Get free CLAYER tokens\"\n• \"Faucet status\"\n\n" +
	"**⛽ Gas & Network**\n• \"Current gas fees\"\n• \"Estimate gas for sending X CLAYER\"\n• \"Network status\"\n\n" +
	"**🏦 DeFi Protocols**\n• \"Show DeFi protocols\"\n• \"Staking opportunities\"\n• \"Liquidity pools\"\n• \"Yield farming\"\n• \"Lending markets\"\n• \"Governance proposals\"\n\n" +
	"**❓ General Help**\n• \"What is staking?\"\n• \"How does yield farming work?\"\n• \"Explain impermanent loss\"\n• \"DeFi security tips\"\n\n" +
	"**🎯 Just chat naturally - I understand context and can help with any DeFi question!**"

const degradedText = "I'm having trouble connecting to my AI service right now. However, I can still help you with DeFi operations like checking your balance, sending transactions, viewing history, and getting price information. Try asking about those!"

func (a *Assistant) handleHelp(context.Context, request) (Response, error) {
	return Response{Text: helpText, Kind: KindHelp}, nil
}

func (a *Assistant) handleGeneral(ctx context.Context, req request) (Response, error) {
	ctx, cancel := a.completionContext(ctx)
	defer cancel()

	reply, err := a.completion.Complete(ctx, llm.Request{
		Message:  req.text,
		Intent:   req.intent.String(),
		Entities: req.entities.Map(),
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			err = llm.Unreachable("completion", err)
		}
		a.log.Warn("completion unavailable", "error", xerrors.Describe(err))
		return Response{Text: degradedText, Kind: KindError, Data: map[string]string{"code": string(xerrors.CodeOf(err))}}, nil
	}
	if reply == "" {
		reply = llm.EmptyReply
	}
	return Response{Text: reply, Kind: KindAI}, nil
}
