package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"CircleLayer-Assistant/internal/catalog"
	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/intent"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/ledger/ledgertest"
	"CircleLayer-Assistant/internal/llm"
)

const (
	wallet    = "0x742d35Cc6634C0532925a3b8D1e7e98a8A16D7c9"
	recipient = "0x00000000000000000000000000000000000000aa"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubCompletion struct {
	mu    sync.Mutex
	reply string
	err   error
	wait  time.Duration
	last  llm.Request
}

func (s *stubCompletion) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.last = req
	s.mu.Unlock()
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func newAssistant(fake *ledgertest.Fake, completion llm.Client, opts ...Option) *Assistant {
	var client ledger.Client
	if fake != nil {
		client = fake
	}
	return New(nil, client, nil, completion, opts...)
}

func TestBalance(t *testing.T) {
	fake := ledgertest.New(wallet)
	fake.BalanceValue = ledger.Balance{Balance: "12.345678", Address: wallet, Currency: ledger.Currency}

	resp := newAssistant(fake, nil).Handle(context.Background(), "What's my balance?")
	require.Equal(t, KindBalance, resp.Kind)
	require.Contains(t, resp.Text, "**Balance:** 12.3457 CLAYER")
	require.Contains(t, resp.Text, "`0x742d...D7c9`")
	require.Equal(t, fake.BalanceValue, resp.Data)
}

func TestBalanceFailureQuotesError(t *testing.T) {
	fake := ledgertest.New(wallet)
	fake.BalanceErr = errors.New("connection refused")

	resp := newAssistant(fake, nil).Handle(context.Background(), "balance")
	require.Equal(t, KindError, resp.Kind)
	require.Contains(t, resp.Text, "Error: connection refused")
}

func TestBalanceWithoutLedger(t *testing.T) {
	resp := newAssistant(nil, nil).Handle(context.Background(), "balance")
	require.Equal(t, KindError, resp.Kind)
	require.Contains(t, resp.Text, "Wallet not initialized")
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields asks for clarification", func(t *testing.T) {
		for _, msg := range []string{"send tokens", "send 2 clayer", "send to " + recipient, "send 0 clayer to " + recipient} {
			fake := ledgertest.New(wallet)
			resp := newAssistant(fake, nil).Handle(ctx, msg)
			require.Equal(t, KindHelp, resp.Kind, msg)
			require.Equal(t, sendHelpText, resp.Text)
			require.Empty(t, fake.Calls(), msg)
		}
	})

	t.Run("invalid address skips balance", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.ValidAddress = func(string) bool { return false }
		resp := newAssistant(fake, nil).Handle(ctx, "send 1 clayer to "+recipient)
		require.Equal(t, KindError, resp.Kind)
		require.Contains(t, resp.Text, "Invalid Address Format")
		require.False(t, fake.Called("Balance"))
	})

	t.Run("wrong length address is rejected before balance", func(t *testing.T) {
		for _, addr := range []string{
			recipient + "f", // 41 hex digits
			recipient[:40],  // 38 hex digits
			"0x00000000000000000000000000000000000000zz",
		} {
			fake := ledgertest.New(wallet)
			fake.BalanceValue.Balance = "10.0"
			resp := newAssistant(fake, nil).Handle(ctx, "send 1 clayer to "+addr)
			require.Equal(t, KindError, resp.Kind, addr)
			require.Contains(t, resp.Text, "Invalid Address Format")
			require.Contains(t, resp.Text, "`"+addr+"`")
			require.Equal(t, []string{"ValidateAddress"}, fake.Calls(), addr)
		}
	})

	t.Run("insufficient balance skips send", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.BalanceValue.Balance = "1.0"
		resp := newAssistant(fake, nil).Handle(ctx, "send 2.5 clayer to "+recipient)
		require.Equal(t, KindError, resp.Kind)
		require.Contains(t, resp.Text, "You're trying to send **2.5 CLAYER** but you only have **1.0000 CLAYER**")
		require.False(t, fake.Called("SendTransaction"))
	})

	t.Run("success", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.BalanceValue.Balance = "10.0"
		fake.Receipt = ledger.TxReceipt{Hash: "0xabc", To: recipient, Value: "1.5", Status: "pending"}
		resp := newAssistant(fake, nil, WithExplorerURL("https://explorer.example/")).Handle(ctx, "send 1.5 clayer to "+recipient)
		require.Equal(t, KindTransaction, resp.Kind)
		require.Contains(t, resp.Text, "**Hash:** `0xabc`")
		require.Contains(t, resp.Text, "**Status:** pending")
		require.Contains(t, resp.Text, "(https://explorer.example/tx/0xabc)")
		require.Equal(t, fake.Receipt, resp.Data)
	})

	t.Run("ledger failure", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.BalanceValue.Balance = "10.0"
		fake.SendErr = xerrors.New(xerrors.CodeInsufficientBalance, "insufficient funds for gas")
		resp := newAssistant(fake, nil).Handle(ctx, "send 1 clayer to "+recipient)
		require.Equal(t, KindError, resp.Kind)
		require.Contains(t, resp.Text, "Transaction Failed**\n\ninsufficient funds for gas")
	})
}

func TestGas(t *testing.T) {
	ctx := context.Background()

	fake := ledgertest.New(wallet)
	fake.Estimate = ledger.GasEstimate{GasLimit: 21000, GasPrice: "2.5", TotalCost: "0.000042"}
	resp := newAssistant(fake, nil).Handle(ctx, "gas fee for 1.5 clayer to "+recipient)
	require.Equal(t, KindGas, resp.Kind)
	require.Contains(t, resp.Text, "**For sending 1.5 CLAYER:**")
	require.Contains(t, resp.Text, "**Gas Limit:** 21000")
	require.Contains(t, resp.Text, "**Gas Price:** 2.50 Gwei")
	require.Contains(t, resp.Text, "**Total Gas Cost:** 0.000042 CLAYER")
	require.Contains(t, resp.Text, "**Transaction Total:** 1.500042 CLAYER")

	fake = ledgertest.New(wallet)
	resp = newAssistant(fake, nil).Handle(ctx, "gas fee for 1.5 clayer to "+recipient+"0")
	require.Equal(t, KindError, resp.Kind)
	require.Contains(t, resp.Text, "Invalid Address Format")
	require.False(t, fake.Called("EstimateGas"))

	fake = ledgertest.New(wallet)
	fake.Network.GasPrice = "3"
	resp = newAssistant(fake, nil).Handle(ctx, "current gas fees")
	require.Equal(t, KindGas, resp.Kind)
	require.Contains(t, resp.Text, "**Network Gas Price:** 3.00 Gwei")
	require.False(t, fake.Called("EstimateGas"))

	fake.NetworkErr = errors.New("rpc down")
	resp = newAssistant(fake, nil).Handle(ctx, "gas")
	require.Equal(t, KindError, resp.Kind)
	require.Equal(t, "❌ Error fetching gas information: rpc down", resp.Text)
}

func TestHistory(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	fake := ledgertest.New(wallet)
	resp := newAssistant(fake, nil).Handle(ctx, "show my history")
	require.Equal(t, KindHistory, resp.Kind)
	require.Contains(t, resp.Text, "No Recent Transactions")

	for i := 0; i < 7; i++ {
		tx := ledger.Transaction{
			Hash:      fmt.Sprintf("0x%02d", i),
			From:      wallet,
			To:        recipient,
			Value:     "0.5",
			Timestamp: now.Add(-time.Duration(i) * 2 * time.Hour),
			Direction: ledger.DirectionSent,
		}
		if i%2 == 1 {
			tx.From, tx.To, tx.Direction = recipient, wallet, ledger.DirectionReceived
		}
		fake.History = append(fake.History, tx)
	}

	resp = newAssistant(fake, nil, WithClock(func() time.Time { return now })).Handle(ctx, "show my history")
	require.Equal(t, KindHistory, resp.Kind)
	require.Contains(t, resp.Text, "**Recent Transactions** (7)")
	require.Contains(t, resp.Text, "**1.** 📤 SENT")
	require.Contains(t, resp.Text, "**2.** 📥 RECEIVED")
	require.Contains(t, resp.Text, "**From:** `0x0000...00aa`")
	require.Contains(t, resp.Text, "**Time:** Just now")
	require.Contains(t, resp.Text, "**Time:** 8h ago")
	require.NotContains(t, resp.Text, "**6.**")
	require.True(t, strings.HasSuffix(resp.Text, "*...and 2 more transactions*"))

	fake.HistoryErr = errors.New("scan failed")
	resp = newAssistant(fake, nil).Handle(ctx, "show my history")
	require.Equal(t, KindError, resp.Kind)
	require.Equal(t, "❌ Error fetching transaction history: scan failed", resp.Text)
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{60 * time.Second, "1m ago"},
		{59*time.Minute + 59*time.Second, "59m ago"},
		{time.Hour, "1h ago"},
		{23*time.Hour + 59*time.Minute, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{73 * time.Hour, "3d ago"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, TimeAgo(now, now.Add(-tc.ago)), tc.ago.String())
	}
}

func TestNetworkAndAddress(t *testing.T) {
	ctx := context.Background()
	fake := ledgertest.New(wallet)
	fake.Network = ledger.NetworkInfo{ChainID: "28525", BlockNumber: 4242, GasPrice: "1.5"}

	a := newAssistant(fake, nil, WithRPCURL("https://rpc.example"))
	resp := a.Handle(ctx, "network status")
	require.Equal(t, KindNetwork, resp.Kind)
	require.Contains(t, resp.Text, "**Chain ID:** 28525\n**Latest Block:** #4242\n**Gas Price:** 1.50 Gwei")
	require.Contains(t, resp.Text, "[RPC Endpoint](https://rpc.example)")

	resp = a.Handle(ctx, "show my address")
	require.Equal(t, KindWallet, resp.Kind)
	require.Contains(t, resp.Text, "**Address:** `"+wallet+"`")
	require.Equal(t, map[string]string{"address": wallet}, resp.Data)
}

func TestFaucet(t *testing.T) {
	ctx := context.Background()
	next := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	t.Run("claim", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.Claim = ledger.FaucetClaim{Success: true, TxHash: "0xfeed", Amount: "1.0", Address: wallet, Message: "Successfully claimed 1 CLAYER tokens!", NextClaimTime: next}
		resp := newAssistant(fake, nil).Handle(ctx, "claim faucet")
		require.Equal(t, KindTransaction, resp.Kind)
		require.Contains(t, resp.Text, "Successfully claimed 1 CLAYER tokens!")
		require.Contains(t, resp.Text, "/tx/0xfeed")
		require.True(t, fake.Called("ClaimFaucet"))
	})

	failures := []struct {
		name   string
		err    error
		reason string
		title  string
	}{
		{"rate limited", xerrors.New(xerrors.CodeRateLimited, "You can only claim once every 24 hours. Please try again tomorrow.",
			xerrors.WithMetadata("next_claim_time", next.Format(time.RFC3339))), FaucetRateLimited, "Faucet Rate Limit Reached"},
		{"invalid address", xerrors.New(xerrors.CodeInvalidAddress, "Please provide a valid EVM-compatible wallet address."), FaucetInvalidAddress, "Invalid Wallet Address"},
		{"other", xerrors.New(xerrors.CodeFaucetFailure, "Faucet claim failed: empty"), FaucetOther, "Faucet Claim Failed"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			fake := ledgertest.New(wallet)
			fake.ClaimErr = tc.err
			resp := newAssistant(fake, nil).Handle(ctx, "claim faucet")
			require.Equal(t, KindError, resp.Kind)
			require.Contains(t, resp.Text, tc.title)
			failure, ok := resp.Data.(FaucetFailure)
			require.True(t, ok)
			require.Equal(t, tc.reason, failure.Reason)
			if tc.reason == FaucetRateLimited {
				require.NotNil(t, failure.NextClaimTime)
				require.True(t, next.Equal(*failure.NextClaimTime))
			}
		})
	}

	t.Run("eligibility", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.Eligibility = ledger.FaucetEligibility{Eligible: false, Reason: "Already claimed today", NextClaim: &next, DailyLimit: "1 CLAYER", TimeRemaining: 90 * time.Minute}
		resp := newAssistant(fake, nil).Handle(ctx, "when can I claim again?")
		require.Equal(t, KindWallet, resp.Kind)
		require.Contains(t, resp.Text, "Faucet Cooldown")
		require.Contains(t, resp.Text, "**Time remaining:** 1h 30m")
		require.False(t, fake.Called("ClaimFaucet"))

		fake.Eligibility = ledger.FaucetEligibility{Eligible: true, DailyLimit: "1 CLAYER"}
		resp = newAssistant(fake, nil).Handle(ctx, "am I eligible for the faucet")
		require.Contains(t, resp.Text, "Faucet Available")
	})
}

func TestCatalogHandlers(t *testing.T) {
	ctx := context.Background()
	a := newAssistant(ledgertest.New(wallet), nil)

	cases := []struct {
		msg      string
		kind     Kind
		snippets []string
	}{
		{"show staking options", KindStaking, []string{"**Your Staking:**\n• **Staked:** 1250.45 CLAYER\n• **Rewards:** 45.67 CLAYER", "**3. Validator Staking**", "**Min Stake:** 1000 CLAYER"}},
		{"liquidity", KindLiquidity, []string{"**1. CLAYER/ETH Pool**", "**TVL:** $1.2M", "**24h Volume:** $45.2K", "impermanent loss*"}},
		{"explain yield farming", KindFarming, []string{"**3. High Yield Farm**", "**Lock Period:** 90 days", "**Risk Level:** High"}},
		{"lending markets", KindLending, []string{"**Available Markets:**", "**Collateral Factor:** 85%"}},
		{"governance proposals", KindGovernance, []string{"**Your Voting Power:** 0 CLAYER", "**Active Proposals:** 3", "**002. Add New Liquidity Pool: CLAYER/BNB**", "**For:** 2.5M | **Against:** 450K"}},
		{"show defi protocols", KindProtocols, []string{"**1. Kite DEX** (Exchange)", "💰 **TVL:** $4.2M", "**Features:** Spot Trading, Limit Orders, LP Farming", "**Total Ecosystem TVL:** $19.8M"}},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			resp := a.Handle(ctx, tc.msg)
			require.Equal(t, tc.kind, resp.Kind)
			for _, s := range tc.snippets {
				require.Contains(t, resp.Text, s)
			}
		})
	}

	resp := a.Handle(ctx, "lending markets")
	require.NotContains(t, resp.Text, "Your Position")
}

type failingCatalog struct{ catalog.Static }

func (*failingCatalog) Farms(context.Context) ([]catalog.Farm, error) {
	return nil, errors.New("catalog offline")
}

func TestCatalogFailure(t *testing.T) {
	provider := &failingCatalog{}
	provider.Replace(catalog.Defaults())
	a := New(nil, ledgertest.New(wallet), provider, nil)
	resp := a.Handle(context.Background(), "farm")
	require.Equal(t, KindError, resp.Kind)
	require.Equal(t, "❌ Error fetching farming info: catalog offline", resp.Text)
}

func TestHelp(t *testing.T) {
	resp := newAssistant(nil, nil).Handle(context.Background(), "what can you do")
	require.Equal(t, KindHelp, resp.Kind)
	require.True(t, strings.HasPrefix(resp.Text, "🤖 **DeFi AI Assistant - Complete Guide**"))
}

func TestGeneralFallback(t *testing.T) {
	ctx := context.Background()

	completion := &stubCompletion{reply: "Impermanent loss happens when ..."}
	resp := newAssistant(nil, completion).Handle(ctx, "explain impermanent loss for eth")
	require.Equal(t, KindAI, resp.Kind)
	require.Equal(t, completion.reply, resp.Text)
	require.Equal(t, "general", completion.last.Intent)
	require.Equal(t, []string{"ETH"}, completion.last.Entities["symbols"])

	completion = &stubCompletion{err: xerrors.New(xerrors.CodeServiceUnavailable, "quota")}
	resp = newAssistant(nil, completion).Handle(ctx, "explain impermanent loss")
	require.Equal(t, KindError, resp.Kind)
	require.Equal(t, degradedText, resp.Text)

	resp = newAssistant(nil, nil).Handle(ctx, "explain impermanent loss")
	require.Equal(t, degradedText, resp.Text)
}

func TestCompletionTimeout(t *testing.T) {
	completion := &stubCompletion{reply: "late", wait: time.Second}
	a := newAssistant(nil, completion, WithCompletionTimeout(10*time.Millisecond))

	resp := a.Handle(context.Background(), "explain impermanent loss")
	require.Equal(t, KindError, resp.Kind)
	require.Equal(t, map[string]string{"code": string(xerrors.CodeServiceUnavailable)}, resp.Data)
}

type slowLedger struct{ *ledgertest.Fake }

func (s slowLedger) NetworkInfo(ctx context.Context) (ledger.NetworkInfo, error) {
	<-ctx.Done()
	return ledger.NetworkInfo{}, ctx.Err()
}

func TestLedgerTimeout(t *testing.T) {
	a := New(nil, slowLedger{ledgertest.New(wallet)}, nil, nil, WithLedgerTimeout(10*time.Millisecond))
	resp := a.Handle(context.Background(), "network")
	require.Equal(t, KindError, resp.Kind)
	require.Contains(t, resp.Text, "Network request timed out")
}

func TestPanicIsRecovered(t *testing.T) {
	fake := ledgertest.New(wallet)
	fake.PanicOn = "NetworkInfo"

	var observed []Dispatch
	a := newAssistant(fake, nil, WithObserver(ObserverFunc(func(_ context.Context, d Dispatch) {
		observed = append(observed, d)
	})))

	resp := a.Handle(WithSession(context.Background(), "s-1"), "network")
	require.Equal(t, KindError, resp.Kind)
	require.True(t, strings.HasPrefix(resp.Text, genericFailure))
	require.Contains(t, resp.Text, "forced panic in NetworkInfo")

	require.Len(t, observed, 1)
	require.True(t, observed[0].Panicked)
	require.Equal(t, "s-1", observed[0].SessionID)
	require.Equal(t, intent.Network, observed[0].Intent)
}

func TestConcurrentHandle(t *testing.T) {
	fake := ledgertest.New(wallet)
	fake.BalanceValue.Balance = "3.0"
	a := newAssistant(fake, &stubCompletion{reply: "ok"})

	messages := []string{"balance", "staking", "network status", "help me", "tell me a joke", "send tokens"}
	var wg sync.WaitGroup
	for i := 0; i < 48; i++ {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			resp := a.Handle(context.Background(), msg)
			if resp.Text == "" || resp.Kind == "" {
				t.Errorf("empty response for %q", msg)
			}
		}(messages[i%len(messages)])
	}
	wg.Wait()
}
