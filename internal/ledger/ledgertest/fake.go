// Package ledgertest provides a scriptable in-memory ledger.Client for tests.
package ledgertest

import (
	"context"
	"sync"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
)

// Fake implements ledger.Client. Each method returns the configured value or
// error and records its name in Calls.
type Fake struct {
	mu sync.Mutex

	Wallet       string
	BalanceValue ledger.Balance
	BalanceErr   error
	Estimate     ledger.GasEstimate
	EstimateErr  error
	Receipt      ledger.TxReceipt
	SendErr      error
	History      []ledger.Transaction
	HistoryErr   error
	Network      ledger.NetworkInfo
	NetworkErr   error
	Claim        ledger.FaucetClaim
	ClaimErr     error
	Eligibility  ledger.FaucetEligibility
	EligibleErr  error

	// ValidAddress overrides address validation when set.
	ValidAddress func(string) bool

	// PanicOn makes the named method panic, to exercise recovery paths.
	PanicOn string

	calls  []string
	closed bool
}

// New returns a Fake with a wallet address and a healthy network.
func New(wallet string) *Fake {
	return &Fake{
		Wallet:       wallet,
		BalanceValue: ledger.Balance{Balance: "0.0", Address: wallet, Currency: ledger.Currency},
		Network:      ledger.NetworkInfo{ChainID: "28525", Name: "circlelayer-testnet", BlockNumber: 1, GasPrice: "1.0"},
	}
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	panicOn := f.PanicOn
	f.mu.Unlock()
	if panicOn == name {
		panic("ledgertest: forced panic in " + name)
	}
}

// Calls returns the recorded method names in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether the named method was invoked.
func (f *Fake) Called(name string) bool {
	for _, c := range f.Calls() {
		if c == name {
			return true
		}
	}
	return false
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Address() string {
	f.record("Address")
	return f.Wallet
}

func (f *Fake) Balance(_ context.Context, address string) (ledger.Balance, error) {
	f.record("Balance")
	if address == "" && f.Wallet == "" {
		return ledger.Balance{}, xerrors.New(xerrors.CodeNotInitialized, "wallet not initialized")
	}
	return f.BalanceValue, f.BalanceErr
}

func (f *Fake) EstimateGas(context.Context, string, float64) (ledger.GasEstimate, error) {
	f.record("EstimateGas")
	return f.Estimate, f.EstimateErr
}

func (f *Fake) SendTransaction(context.Context, string, float64, uint64) (ledger.TxReceipt, error) {
	f.record("SendTransaction")
	return f.Receipt, f.SendErr
}

func (f *Fake) TransactionHistory(_ context.Context, _ string, limit int) ([]ledger.Transaction, error) {
	f.record("TransactionHistory")
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	if limit > 0 && len(f.History) > limit {
		return append([]ledger.Transaction(nil), f.History[:limit]...), nil
	}
	return append([]ledger.Transaction(nil), f.History...), nil
}

func (f *Fake) NetworkInfo(context.Context) (ledger.NetworkInfo, error) {
	f.record("NetworkInfo")
	return f.Network, f.NetworkErr
}

func (f *Fake) ValidateAddress(s string) bool {
	f.record("ValidateAddress")
	if f.ValidAddress != nil {
		return f.ValidAddress(s)
	}
	return ledger.ValidateAddress(s)
}

func (f *Fake) ClaimFaucet(context.Context, string) (ledger.FaucetClaim, error) {
	f.record("ClaimFaucet")
	return f.Claim, f.ClaimErr
}

func (f *Fake) FaucetEligibility(context.Context, string) (ledger.FaucetEligibility, error) {
	f.record("FaucetEligibility")
	return f.Eligibility, f.EligibleErr
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

var _ ledger.Client = (*Fake)(nil)
