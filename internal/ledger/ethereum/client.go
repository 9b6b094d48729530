// Package ethereum implements ledger.Client for EVM compatible chains using
// go-ethereum.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	stdErrors "errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
)

const (
	defaultScanDepth     = 100
	defaultTransferGas   = 21000
	statusPending        = "pending"
	statusConfirmed      = "confirmed"
	fallbackGasPriceGwei = 20
)

// rpcBackend is the subset of the JSON-RPC API the client needs. It is
// satisfied by *ethclient.Client and by the simulated backend client.
type rpcBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*coretypes.Block, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
}

// Config describes how to construct an EVM client.
type Config struct {
	Name       string
	RPCURL     string
	PrivateKey string
	ScanDepth  int
	Faucet     ledger.Faucet
}

// Client implements ledger.Client for EVM compatible chains.
type Client struct {
	name      string
	scanDepth int
	faucet    ledger.Faucet

	mu      sync.Mutex
	backend rpcBackend
	closer  func()
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// NewClient dials the RPC endpoint and loads the signing key, if any.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "未配置 RPC 地址")
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetworkUnavailable, err, "连接节点失败")
	}
	client, err := NewWithBackend(cfg, eth)
	if err != nil {
		eth.Close()
		return nil, err
	}
	client.closer = eth.Close
	return client, nil
}

// NewWithBackend builds a client over an existing backend, such as the
// go-ethereum simulated backend in tests.
func NewWithBackend(cfg Config, backend rpcBackend) (*Client, error) {
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "缺少链访问后端")
	}
	depth := cfg.ScanDepth
	if depth <= 0 {
		depth = defaultScanDepth
	}
	c := &Client{name: cfg.Name, scanDepth: depth, faucet: cfg.Faucet, backend: backend}

	if key := strings.TrimSpace(cfg.PrivateKey); key != "" {
		pk, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X"))
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeValidationFailed, err, "私钥格式无效")
		}
		c.key = pk
		c.from = crypto.PubkeyToAddress(pk.PublicKey)
	}
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
	c.backend = nil
}

// Address returns the wallet address, or "" without a signing key.
func (c *Client) Address() string {
	if c.key == nil {
		return ""
	}
	return c.from.Hex()
}

// ValidateAddress is a format-only check.
func (c *Client) ValidateAddress(s string) bool {
	return ledger.ValidateAddress(s)
}

func (c *Client) rpc() (rpcBackend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "client is closed")
	}
	return c.backend, nil
}

func (c *Client) wallet() error {
	if c.key == nil {
		return xerrors.New(xerrors.CodeNotInitialized, "Wallet not initialized")
	}
	return nil
}

// target resolves an optional address argument to the wallet address.
func (c *Client) target(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		if err := c.wallet(); err != nil {
			return common.Address{}, xerrors.New(xerrors.CodeNotInitialized, "No address provided and wallet not initialized")
		}
		return c.from, nil
	}
	if !ledger.ValidateAddress(address) {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidAddress, fmt.Sprintf("invalid address %s", address))
	}
	return common.HexToAddress(address), nil
}

func (c *Client) resolveChainID(ctx context.Context, backend rpcBackend) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	id, err := backend.ChainID(ctx)
	if err != nil {
		return nil, networkError(err, "failed to fetch chain id")
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return id, nil
}

// Balance returns the native balance of address, or of the wallet when empty.
func (c *Client) Balance(ctx context.Context, address string) (ledger.Balance, error) {
	backend, err := c.rpc()
	if err != nil {
		return ledger.Balance{}, err
	}
	account, err := c.target(address)
	if err != nil {
		return ledger.Balance{}, err
	}
	wei, err := backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return ledger.Balance{}, networkError(err, "failed to fetch balance")
	}
	return ledger.Balance{
		Balance:  ledger.FormatEther(wei),
		Address:  account.Hex(),
		Currency: ledger.Currency,
	}, nil
}

func (c *Client) gasPrice(ctx context.Context, backend rpcBackend) *big.Int {
	price, err := backend.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		return new(big.Int).Mul(big.NewInt(fallbackGasPriceGwei), big.NewInt(1_000_000_000))
	}
	return price
}

// EstimateGas estimates a native transfer of amount CLAYER from the wallet.
func (c *Client) EstimateGas(ctx context.Context, to string, amount float64) (ledger.GasEstimate, error) {
	backend, err := c.rpc()
	if err != nil {
		return ledger.GasEstimate{}, err
	}
	if err := c.wallet(); err != nil {
		return ledger.GasEstimate{}, err
	}
	if !ledger.ValidateAddress(to) {
		return ledger.GasEstimate{}, xerrors.New(xerrors.CodeInvalidAddress, fmt.Sprintf("invalid address %s", to))
	}
	value, err := ledger.ParseEther(amount)
	if err != nil {
		return ledger.GasEstimate{}, err
	}

	recipient := common.HexToAddress(to)
	limit, err := backend.EstimateGas(ctx, gethcore.CallMsg{From: c.from, To: &recipient, Value: value})
	if err != nil {
		return ledger.GasEstimate{}, networkError(err, "failed to estimate gas")
	}
	price := c.gasPrice(ctx, backend)
	total := new(big.Int).Mul(new(big.Int).SetUint64(limit), price)

	return ledger.GasEstimate{
		GasLimit:     limit,
		GasPrice:     ledger.FormatGwei(price),
		TotalCostWei: total.String(),
		TotalCost:    ledger.FormatEther(total),
		Currency:     ledger.Currency,
	}, nil
}

// SendTransaction signs and broadcasts a legacy native transfer. A zero
// gasLimit is estimated, falling back to 21000.
func (c *Client) SendTransaction(ctx context.Context, to string, amount float64, gasLimit uint64) (ledger.TxReceipt, error) {
	backend, err := c.rpc()
	if err != nil {
		return ledger.TxReceipt{}, err
	}
	if err := c.wallet(); err != nil {
		return ledger.TxReceipt{}, err
	}
	if !ledger.ValidateAddress(to) {
		return ledger.TxReceipt{}, xerrors.New(xerrors.CodeInvalidAddress, fmt.Sprintf("invalid address %s", to))
	}
	value, err := ledger.ParseEther(amount)
	if err != nil {
		return ledger.TxReceipt{}, err
	}
	chainID, err := c.resolveChainID(ctx, backend)
	if err != nil {
		return ledger.TxReceipt{}, err
	}

	recipient := common.HexToAddress(to)
	if gasLimit == 0 {
		estimated, err := backend.EstimateGas(ctx, gethcore.CallMsg{From: c.from, To: &recipient, Value: value})
		if err != nil {
			estimated = defaultTransferGas
		}
		gasLimit = estimated
	}

	nonce, err := backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return ledger.TxReceipt{}, networkError(err, "failed to fetch nonce")
	}
	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: c.gasPrice(ctx, backend),
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return ledger.TxReceipt{}, xerrors.Wrap(xerrors.CodeValidationFailed, err, "failed to sign transaction")
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
			return ledger.TxReceipt{}, xerrors.Wrap(xerrors.CodeInsufficientBalance, err, "insufficient funds")
		}
		return ledger.TxReceipt{}, networkError(err, "failed to send transaction")
	}

	return ledger.TxReceipt{
		Hash:     signed.Hash().Hex(),
		To:       recipient.Hex(),
		Value:    ledger.FormatEther(value),
		GasLimit: gasLimit,
		Status:   statusPending,
	}, nil
}

// TransactionHistory scans the most recent blocks, newest first, for
// transfers involving address. Blocks that fail to load are skipped.
func (c *Client) TransactionHistory(ctx context.Context, address string, limit int) ([]ledger.Transaction, error) {
	backend, err := c.rpc()
	if err != nil {
		return nil, err
	}
	account, err := c.target(address)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	chainID, err := c.resolveChainID(ctx, backend)
	if err != nil {
		return nil, err
	}
	latest, err := backend.BlockNumber(ctx)
	if err != nil {
		return nil, networkError(err, "failed to fetch latest block number")
	}

	signer := coretypes.LatestSignerForChainID(chainID)
	depth := uint64(c.scanDepth)
	if latest < depth {
		depth = latest
	}

	out := make([]ledger.Transaction, 0, limit)
	for i := uint64(0); i < depth && len(out) < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, networkError(err, "block scan interrupted")
		}
		number := latest - i
		block, err := backend.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil || block == nil {
			continue
		}
		for _, tx := range block.Transactions() {
			from, err := coretypes.Sender(signer, tx)
			if err != nil {
				continue
			}
			var to common.Address
			if tx.To() != nil {
				to = *tx.To()
			}
			if from != account && (tx.To() == nil || to != account) {
				continue
			}
			entry := ledger.Transaction{
				Hash:        tx.Hash().Hex(),
				From:        from.Hex(),
				Value:       ledger.FormatEther(tx.Value()),
				BlockNumber: number,
				Timestamp:   time.Unix(int64(block.Time()), 0).UTC(),
				Status:      statusConfirmed,
				Direction:   ledger.DirectionReceived,
			}
			if tx.To() != nil {
				entry.To = to.Hex()
			}
			if from == account {
				entry.Direction = ledger.DirectionSent
			}
			out = append(out, entry)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// NetworkInfo reports the chain id, head block and fee data in gwei.
func (c *Client) NetworkInfo(ctx context.Context) (ledger.NetworkInfo, error) {
	backend, err := c.rpc()
	if err != nil {
		return ledger.NetworkInfo{}, err
	}
	chainID, err := c.resolveChainID(ctx, backend)
	if err != nil {
		return ledger.NetworkInfo{}, err
	}
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return ledger.NetworkInfo{}, networkError(err, "failed to fetch latest block")
	}
	price, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return ledger.NetworkInfo{}, networkError(err, "failed to fetch gas price")
	}

	info := ledger.NetworkInfo{
		ChainID:     chainID.String(),
		Name:        c.name,
		BlockNumber: head.Number.Uint64(),
		GasPrice:    ledger.FormatGwei(price),
	}
	if head.BaseFee != nil {
		tip, err := backend.SuggestGasTipCap(ctx)
		if err != nil || tip == nil {
			tip = big.NewInt(1_000_000_000)
		}
		maxFee := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
		info.MaxFeePerGas = ledger.FormatGwei(maxFee)
		info.MaxPriorityFeePerGas = ledger.FormatGwei(tip)
	}
	return info, nil
}

// ClaimFaucet requests testnet tokens for address, or for the wallet.
func (c *Client) ClaimFaucet(ctx context.Context, address string) (ledger.FaucetClaim, error) {
	if c.faucet == nil {
		return ledger.FaucetClaim{}, xerrors.New(xerrors.CodeServiceUnavailable, "Faucet is not configured")
	}
	account, err := c.target(address)
	if err != nil {
		return ledger.FaucetClaim{}, err
	}
	return c.faucet.Claim(ctx, account.Hex())
}

// FaucetEligibility checks whether address, or the wallet, may claim.
func (c *Client) FaucetEligibility(ctx context.Context, address string) (ledger.FaucetEligibility, error) {
	if c.faucet == nil {
		return ledger.FaucetEligibility{}, xerrors.New(xerrors.CodeServiceUnavailable, "Faucet is not configured")
	}
	account, err := c.target(address)
	if err != nil {
		if xerrors.HasCode(err, xerrors.CodeInvalidAddress) {
			return ledger.FaucetEligibility{Eligible: false, Reason: "Invalid wallet address"}, nil
		}
		return ledger.FaucetEligibility{}, err
	}
	return c.faucet.Eligibility(ctx, account.Hex())
}

// networkError 的 message 会出现在回复里，使用英文。
func networkError(err error, message string) error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeNetworkUnavailable, err, message+" (timed out)")
	}
	return xerrors.Wrap(xerrors.CodeNetworkUnavailable, err, message)
}

var _ ledger.Client = (*Client)(nil)
