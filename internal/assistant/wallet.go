package assistant

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
)

const (
	maxHistoryEntries = 5
	sendHelpText      = "📝 **To send tokens, I need:**\n\n• **Recipient address** (0x...)\n• **Amount** to send\n\n**Example:** \"Send 1.5 CLAYER to 0x742d35cc6634c0532925a3b8d1e7e98a8a16d7c9\"\n\n**Safety Tip:** Always double-check the recipient address before sending!"
)

func (a *Assistant) handleBalance(ctx context.Context, _ request) (Response, error) {
	bal, err := a.fetchBalance(ctx)
	if err != nil {
		return Response{
			Text: fmt.Sprintf("❌ **Unable to fetch balance**\n\nError: %s\n\n🔧 **Troubleshooting:**\n• Check wallet connection\n• Verify network connectivity\n• Try refreshing the page", xerrors.Describe(err)),
			Kind: KindError,
		}, nil
	}

	text := fmt.Sprintf("💰 **Wallet Overview**\n\n**Balance:** %.4f CLAYER\n**Address:** `%s`\n\n"+
		"📊 **Quick Actions:**\n• 💸 Send tokens: \"Send X CLAYER to 0x...\"\n• 🎯 Stake for rewards: \"Show staking options\"  \n"+
		"• 🌊 Add liquidity: \"Show pools\"\n• 📈 View opportunities: \"Show farming\"\n\n"+
		"💡 *Ask \"What can I do with my balance?\" for suggestions*",
		parseAmount(bal.Balance), ledger.FormatAddress(bal.Address))
	return Response{Text: text, Kind: KindBalance, Data: bal}, nil
}

func (a *Assistant) fetchBalance(ctx context.Context) (ledger.Balance, error) {
	if err := a.requireLedger(); err != nil {
		return ledger.Balance{}, err
	}
	ctx, cancel := a.ledgerContext(ctx)
	defer cancel()
	bal, err := a.ledger.Balance(ctx, "")
	return bal, ledgerFailure(err)
}

func (a *Assistant) handleSend(ctx context.Context, req request) (Response, error) {
	e := req.entities
	// 金额为 0 与缺失同样处理。
	if !e.HasAddress() || !e.HasAmount || e.Amount == 0 {
		return Response{Text: sendHelpText, Kind: KindHelp}, nil
	}

	if err := a.requireLedger(); err != nil {
		return transactionFailed(err), nil
	}
	if !a.ledger.ValidateAddress(e.Address) {
		return invalidAddress(e.Address), nil
	}

	bal, err := a.fetchBalance(ctx)
	if err != nil {
		return transactionFailed(err), nil
	}
	available := parseAmount(bal.Balance)
	if available < e.Amount {
		return Response{
			Text: fmt.Sprintf("❌ **Insufficient Balance**\n\nYou're trying to send **%s CLAYER** but you only have **%.4f CLAYER**\n\nPlease reduce the amount or add more funds to your wallet.",
				formatNumber(e.Amount), available),
			Kind: KindError,
		}, nil
	}

	sendCtx, cancel := a.ledgerContext(ctx)
	defer cancel()
	receipt, err := a.ledger.SendTransaction(sendCtx, e.Address, e.Amount, 0)
	if err != nil {
		return transactionFailed(ledgerFailure(err)), nil
	}

	text := fmt.Sprintf("✅ **Transaction Sent Successfully!**\n\n**Hash:** `%s`\n**To:** `%s`\n**Amount:** %s CLAYER\n**Status:** %s\n\n[View on Explorer](%s)\n\n**Note:** Transaction may take a few minutes to confirm.",
		receipt.Hash, ledger.FormatAddress(receipt.To), receipt.Value, receipt.Status, a.txLink(receipt.Hash))
	return Response{Text: text, Kind: KindTransaction, Data: receipt}, nil
}

func invalidAddress(address string) Response {
	return Response{
		Text: fmt.Sprintf("❌ **Invalid Address Format**\n\nThe address `%s` is not a valid Ethereum address.\n\nPlease check and try again.", address),
		Kind: KindError,
	}
}

func transactionFailed(err error) Response {
	return Response{
		Text: fmt.Sprintf("❌ **Transaction Failed**\n\n%s\n\nPlease check your wallet balance and try again.", xerrors.Describe(err)),
		Kind: KindError,
	}
}

func (a *Assistant) handleHistory(ctx context.Context, _ request) (Response, error) {
	history, err := a.fetchHistory(ctx)
	if err != nil {
		return Response{Text: "❌ Error fetching transaction history: " + xerrors.Describe(err), Kind: KindError}, nil
	}

	if len(history) == 0 {
		return Response{
			Text: fmt.Sprintf("📋 **No Recent Transactions**\n\nNo transactions found for wallet: `%s`\n\nOnce you make some transactions, they'll appear here!",
				ledger.FormatAddress(a.ledger.Address())),
			Kind: KindHistory,
			Data: []ledger.Transaction{},
		}, nil
	}

	now := a.now()
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **Recent Transactions** (%d)\n\n", len(history))
	for i, tx := range history {
		if i >= maxHistoryEntries {
			break
		}
		label, party := "📥 RECEIVED", "From"
		if tx.Direction == ledger.DirectionSent {
			label, party = "📤 SENT", "To"
		}
		fmt.Fprintf(&b, "**%d.** %s\n", i+1, label)
		fmt.Fprintf(&b, "   **Amount:** %.4f CLAYER\n", parseAmount(tx.Value))
		fmt.Fprintf(&b, "   **%s:** `%s`\n", party, ledger.FormatAddress(tx.Counterparty()))
		fmt.Fprintf(&b, "   **Time:** %s\n", TimeAgo(now, tx.Timestamp))
		fmt.Fprintf(&b, "   [View Details](%s)\n\n", a.txLink(tx.Hash))
	}
	if len(history) > maxHistoryEntries {
		fmt.Fprintf(&b, "*...and %d more transactions*", len(history)-maxHistoryEntries)
	}
	return Response{Text: b.String(), Kind: KindHistory, Data: history}, nil
}

func (a *Assistant) fetchHistory(ctx context.Context) ([]ledger.Transaction, error) {
	if err := a.requireLedger(); err != nil {
		return nil, err
	}
	ctx, cancel := a.ledgerContext(ctx)
	defer cancel()
	history, err := a.ledger.TransactionHistory(ctx, "", a.historyLimit)
	return history, ledgerFailure(err)
}

func (a *Assistant) handleGas(ctx context.Context, req request) (Response, error) {
	if err := a.requireLedger(); err != nil {
		return gasFailure(err), nil
	}
	ctx, cancel := a.ledgerContext(ctx)
	defer cancel()

	e := req.entities
	if e.HasAddress() && e.HasAmount && e.Amount != 0 {
		if !a.ledger.ValidateAddress(e.Address) {
			return invalidAddress(e.Address), nil
		}
		estimate, err := a.ledger.EstimateGas(ctx, e.Address, e.Amount)
		if err != nil {
			return gasFailure(ledgerFailure(err)), nil
		}
		cost := parseAmount(estimate.TotalCost)
		text := fmt.Sprintf("⛽ **Gas Fee Estimate**\n\n**For sending %s CLAYER:**\n• **Gas Limit:** %d\n• **Gas Price:** %.2f Gwei\n• **Total Gas Cost:** %.6f CLAYER\n\n**Transaction Total:** %.6f CLAYER",
			formatNumber(e.Amount), estimate.GasLimit, parseAmount(estimate.GasPrice), cost, e.Amount+cost)
		return Response{Text: text, Kind: KindGas, Data: estimate}, nil
	}

	info, err := a.ledger.NetworkInfo(ctx)
	if err != nil {
		return gasFailure(ledgerFailure(err)), nil
	}
	text := fmt.Sprintf("⛽ **Current Gas Information**\n\n**Network Gas Price:** %.2f Gwei\n\n"+
		"**Typical Transaction Costs:**\n• **Simple Transfer:** ~0.0001 CLAYER\n• **Token Swap:** ~0.0003 CLAYER\n• **LP Operation:** ~0.0005 CLAYER\n\n"+
		"*To get exact estimate, specify: \"estimate gas for sending X CLAYER to 0x...\"*", parseAmount(info.GasPrice))
	return Response{Text: text, Kind: KindGas, Data: info}, nil
}

func gasFailure(err error) Response {
	return Response{Text: "❌ Error fetching gas information: " + xerrors.Describe(err), Kind: KindError}
}

func (a *Assistant) handleNetwork(ctx context.Context, _ request) (Response, error) {
	if err := a.requireLedger(); err != nil {
		return networkFailure(err), nil
	}
	ctx, cancel := a.ledgerContext(ctx)
	defer cancel()
	info, err := a.ledger.NetworkInfo(ctx)
	if err != nil {
		return networkFailure(ledgerFailure(err)), nil
	}

	text := fmt.Sprintf("🌐 **Circle Layer Network Status**\n\n**Chain ID:** %s\n**Latest Block:** #%d\n**Gas Price:** %.2f Gwei\n\n"+
		"**Network Performance:**\n• **Block Time:** ~3 seconds\n• **TPS:** Up to 1000+\n• **Finality:** Instant\n\n"+
		"**Useful Links:**\n• [Explorer](%s)\n• [RPC Endpoint](%s)\n• [Faucet](%s)\n• [Documentation](%s)",
		info.ChainID, info.BlockNumber, parseAmount(info.GasPrice), a.explorerURL, a.rpcURL, faucetSiteURL, docsURL)
	return Response{Text: text, Kind: KindNetwork, Data: info}, nil
}

func networkFailure(err error) Response {
	return Response{Text: "❌ Error fetching network info: " + xerrors.Describe(err), Kind: KindError}
}

func (a *Assistant) handleAddress(_ context.Context, _ request) (Response, error) {
	var address string
	if a.ledger != nil {
		address = a.ledger.Address()
	}
	text := fmt.Sprintf("🏦 **Your Wallet Information**\n\n**Address:** `%s`\n**Short:** `%s`\n\n"+
		"**Quick Actions:**\n• [View on Explorer](%s/address/%s)\n• [Get Testnet Tokens](%s)\n• [Claim Faucet](%s)\n\n"+
		"**🛡️ Security Reminder:** Never share your private key with anyone!",
		address, ledger.FormatAddress(address), a.explorerURL, address, faucetSiteURL, faucetSiteURL)
	return Response{Text: text, Kind: KindWallet, Data: map[string]string{"address": address}}, nil
}

// FaucetFailure 是水龙头失败响应携带的数据，Reason 区分限流、地址无效与其他失败。
type FaucetFailure struct {
	Reason        string     `json:"reason"`
	Message       string     `json:"message"`
	NextClaimTime *time.Time `json:"next_claim_time,omitempty"`
}

const (
	FaucetRateLimited    = "rate_limited"
	FaucetInvalidAddress = "invalid_address"
	FaucetOther          = "other"
)

func (a *Assistant) handleFaucet(ctx context.Context, req request) (Response, error) {
	if err := a.requireLedger(); err != nil {
		return a.faucetFailure(err), nil
	}
	ctx, cancel := a.ledgerContext(ctx)
	defer cancel()

	address := req.entities.Address
	if isStatusQuery(req.text) {
		status, err := a.ledger.FaucetEligibility(ctx, address)
		if err != nil {
			return a.faucetFailure(ledgerFailure(err)), nil
		}
		return a.renderEligibility(status), nil
	}

	claim, err := a.ledger.ClaimFaucet(ctx, address)
	if err != nil {
		return a.faucetFailure(ledgerFailure(err)), nil
	}
	text := fmt.Sprintf("🚰 **Faucet Claim Successful!**\n\n%s\n\n**Amount:** %s CLAYER\n**To:** `%s`\n",
		claim.Message, claim.Amount, ledger.FormatAddress(claim.Address))
	if claim.TxHash != "" {
		text += fmt.Sprintf("**Hash:** `%s`\n\n[View on Explorer](%s)\n", claim.TxHash, a.txLink(claim.TxHash))
	}
	if !claim.NextClaimTime.IsZero() {
		text += fmt.Sprintf("\n**Next claim available:** %s", claim.NextClaimTime.UTC().Format(time.RFC1123))
	}
	return Response{Text: strings.TrimRight(text, "\n"), Kind: KindTransaction, Data: claim}, nil
}

func isStatusQuery(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"status", "eligib", "when"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (a *Assistant) renderEligibility(status ledger.FaucetEligibility) Response {
	if status.Eligible {
		return Response{
			Text: fmt.Sprintf("✅ **Faucet Available**\n\nYou can claim **%s** right now.\n\nSay \"claim faucet\" to receive your testnet tokens.", status.DailyLimit),
			Kind: KindWallet,
			Data: status,
		}
	}

	var b strings.Builder
	b.WriteString("⏳ **Faucet Cooldown**\n\n")
	if status.Reason != "" {
		b.WriteString(status.Reason)
		b.WriteString("\n\n")
	}
	if status.NextClaim != nil {
		fmt.Fprintf(&b, "**Next claim:** %s\n", status.NextClaim.UTC().Format(time.RFC1123))
	}
	if status.TimeRemaining > 0 {
		fmt.Fprintf(&b, "**Time remaining:** %s\n", formatRemaining(status.TimeRemaining))
	}
	fmt.Fprintf(&b, "**Daily limit:** %s", status.DailyLimit)
	return Response{Text: b.String(), Kind: KindWallet, Data: status}
}

func (a *Assistant) faucetFailure(err error) Response {
	failure := FaucetFailure{Reason: FaucetOther, Message: xerrors.Describe(err)}
	var text string
	switch xerrors.CodeOf(err) {
	case xerrors.CodeRateLimited:
		failure.Reason = FaucetRateLimited
		text = "⏰ **Faucet Rate Limit Reached**\n\n" + failure.Message
		if coded, ok := xerrors.From(err); ok {
			if raw := coded.Metadata()["next_claim_time"]; raw != "" {
				if next, perr := time.Parse(time.RFC3339, raw); perr == nil {
					failure.NextClaimTime = &next
					text += "\n\n**Next claim available:** " + next.UTC().Format(time.RFC1123)
				}
			}
		}
	case xerrors.CodeInvalidAddress:
		failure.Reason = FaucetInvalidAddress
		text = "❌ **Invalid Wallet Address**\n\n" + failure.Message
	default:
		text = fmt.Sprintf("❌ **Faucet Claim Failed**\n\n%s\n\nYou can also request tokens at %s", failure.Message, faucetSiteURL)
	}
	return Response{Text: text, Kind: KindError, Data: failure}
}

func (a *Assistant) txLink(hash string) string {
	return a.explorerURL + "/tx/" + hash
}

// TimeAgo renders the age of t relative to now using floor division:
// "Just now", "Nm ago", "Nh ago" or "Nd ago".
func TimeAgo(now, t time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
