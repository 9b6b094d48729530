// Package ledger defines the blockchain capability the assistant consumes:
// balances, gas estimates, transfers, history scans, network status and the
// testnet faucet.
package ledger

import (
	"context"
	"time"
)

// Currency is the native token symbol of the chain.
const Currency = "CLAYER"

// Balance is the native balance of an account in decimal CLAYER.
type Balance struct {
	Balance  string `json:"balance"`
	Address  string `json:"address"`
	Currency string `json:"currency"`
}

// GasEstimate describes the expected cost of a native transfer.
type GasEstimate struct {
	GasLimit     uint64 `json:"gas_limit"`
	GasPrice     string `json:"gas_price"`
	TotalCostWei string `json:"total_cost_wei"`
	TotalCost    string `json:"total_cost"`
	Currency     string `json:"currency"`
}

// TxReceipt is returned after a transfer is broadcast.
type TxReceipt struct {
	Hash     string `json:"hash"`
	To       string `json:"to"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gas_limit"`
	Status   string `json:"status"`
}

// Direction tells whether a transaction left or reached the account.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Transaction is one entry of an account history, newest first.
type Transaction struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Direction   Direction `json:"direction"`
}

// Counterparty returns the other side of the transfer.
func (t Transaction) Counterparty() string {
	if t.Direction == DirectionSent {
		return t.To
	}
	return t.From
}

// NetworkInfo summarizes the connected chain. Gas prices are in gwei.
type NetworkInfo struct {
	ChainID              string `json:"chain_id"`
	Name                 string `json:"name"`
	BlockNumber          uint64 `json:"block_number"`
	GasPrice             string `json:"gas_price"`
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
}

// FaucetClaim is the result of a successful faucet request.
type FaucetClaim struct {
	Success       bool      `json:"success"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Address       string    `json:"address"`
	Message       string    `json:"message"`
	NextClaimTime time.Time `json:"next_claim_time"`
}

// FaucetEligibility reports whether an address may claim right now.
type FaucetEligibility struct {
	Eligible      bool          `json:"eligible"`
	Reason        string        `json:"reason,omitempty"`
	LastClaim     *time.Time    `json:"last_claim,omitempty"`
	NextClaim     *time.Time    `json:"next_claim,omitempty"`
	DailyLimit    string        `json:"daily_limit"`
	TimeRemaining time.Duration `json:"time_remaining"`
}

// Faucet is the testnet token dispenser. Claim failures carry the codes
// RATE_LIMITED, INVALID_ADDRESS or FAUCET_ERROR.
type Faucet interface {
	Claim(ctx context.Context, address string) (FaucetClaim, error)
	Eligibility(ctx context.Context, address string) (FaucetEligibility, error)
}

// Client is the full ledger capability. An empty address argument means the
// configured wallet; without a wallet such calls fail with NOT_INITIALIZED.
type Client interface {
	Address() string
	Balance(ctx context.Context, address string) (Balance, error)
	EstimateGas(ctx context.Context, to string, amount float64) (GasEstimate, error)
	SendTransaction(ctx context.Context, to string, amount float64, gasLimit uint64) (TxReceipt, error)
	TransactionHistory(ctx context.Context, address string, limit int) ([]Transaction, error)
	NetworkInfo(ctx context.Context) (NetworkInfo, error)
	ValidateAddress(s string) bool
	ClaimFaucet(ctx context.Context, address string) (FaucetClaim, error)
	FaucetEligibility(ctx context.Context, address string) (FaucetEligibility, error)
	Close()
}
