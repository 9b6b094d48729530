package ethereum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/require"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
)

type stubFaucet struct {
	claimed string
}

func (s *stubFaucet) Claim(_ context.Context, address string) (ledger.FaucetClaim, error) {
	s.claimed = address
	return ledger.FaucetClaim{Success: true, TxHash: "0xfeed", Address: address}, nil
}

func (s *stubFaucet) Eligibility(_ context.Context, address string) (ledger.FaucetEligibility, error) {
	return ledger.FaucetEligibility{Eligible: true, DailyLimit: "1 CLAYER"}, nil
}

type harness struct {
	backend *simulated.Backend
	client  *Client
	from    common.Address
	faucet  *stubFaucet
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	ten := new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000))
	backend := simulated.NewBackend(coretypes.GenesisAlloc{from: {Balance: ten}})
	t.Cleanup(func() { _ = backend.Close() })

	faucet := &stubFaucet{}
	client, err := NewWithBackend(Config{
		Name:       "simulated",
		PrivateKey: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		Faucet:     faucet,
	}, backend.Client())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return &harness{backend: backend, client: client, from: from, faucet: faucet}
}

func TestClientSendAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recipientKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	recipient := crypto.PubkeyToAddress(recipientKey.PublicKey).Hex()

	require.Equal(t, h.from.Hex(), h.client.Address())

	balance, err := h.client.Balance(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "10.0", balance.Balance)
	require.Equal(t, ledger.Currency, balance.Currency)

	estimate, err := h.client.EstimateGas(ctx, recipient, 1.5)
	require.NoError(t, err)
	require.Equal(t, uint64(21000), estimate.GasLimit)
	require.NotEmpty(t, estimate.TotalCost)

	receipt, err := h.client.SendTransaction(ctx, recipient, 1.5, 0)
	require.NoError(t, err)
	require.Equal(t, "pending", receipt.Status)
	require.Equal(t, "1.5", receipt.Value)
	require.Equal(t, recipient, receipt.To)
	h.backend.Commit()

	received, err := h.client.Balance(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, "1.5", received.Balance)

	sent, err := h.client.TransactionHistory(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, receipt.Hash, sent[0].Hash)
	require.Equal(t, ledger.DirectionSent, sent[0].Direction)
	require.Equal(t, recipient, sent[0].Counterparty())
	require.Equal(t, "confirmed", sent[0].Status)

	incoming, err := h.client.TransactionHistory(ctx, recipient, 10)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, ledger.DirectionReceived, incoming[0].Direction)
	require.True(t, ledger.SameAddress(h.from.Hex(), incoming[0].Counterparty()))
}

func TestClientHistoryRespectsLimitAndOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	recipient := "0x00000000000000000000000000000000000000aa"

	var hashes []string
	for i := 0; i < 3; i++ {
		receipt, err := h.client.SendTransaction(ctx, recipient, 0.1, 0)
		require.NoError(t, err)
		h.backend.Commit()
		hashes = append(hashes, receipt.Hash)
	}

	history, err := h.client.TransactionHistory(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, hashes[2], history[0].Hash)
	require.Equal(t, hashes[1], history[1].Hash)
}

func TestClientNetworkInfo(t *testing.T) {
	h := newHarness(t)
	h.backend.Commit()

	info, err := h.client.NetworkInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1337", info.ChainID)
	require.Equal(t, "simulated", info.Name)
	require.GreaterOrEqual(t, info.BlockNumber, uint64(1))
	require.NotEmpty(t, info.GasPrice)
}

func TestClientWithoutWallet(t *testing.T) {
	backend := simulated.NewBackend(coretypes.GenesisAlloc{})
	t.Cleanup(func() { _ = backend.Close() })
	client, err := NewWithBackend(Config{}, backend.Client())
	require.NoError(t, err)
	ctx := context.Background()

	require.Empty(t, client.Address())
	_, err = client.Balance(ctx, "")
	require.True(t, xerrors.HasCode(err, xerrors.CodeNotInitialized))
	_, err = client.SendTransaction(ctx, "0x00000000000000000000000000000000000000aa", 1, 0)
	require.True(t, xerrors.HasCode(err, xerrors.CodeNotInitialized))
	_, err = client.ClaimFaucet(ctx, "")
	require.True(t, xerrors.HasCode(err, xerrors.CodeServiceUnavailable))

	balance, err := client.Balance(ctx, "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	require.Equal(t, "0.0", balance.Balance)
}

func TestClientRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.Balance(ctx, "0x1234")
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidAddress))
	_, err = h.client.SendTransaction(ctx, "not-an-address", 1, 0)
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidAddress))
	_, err = h.client.EstimateGas(ctx, "0x00000000000000000000000000000000000000aa", -1)
	require.True(t, xerrors.HasCode(err, xerrors.CodeValidationFailed))

	_, err = NewWithBackend(Config{PrivateKey: "zz"}, h.backend.Client())
	require.True(t, xerrors.HasCode(err, xerrors.CodeValidationFailed))
}

func TestClientFaucetDelegation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	claim, err := h.client.ClaimFaucet(ctx, "")
	require.NoError(t, err)
	require.True(t, claim.Success)
	require.Equal(t, h.from.Hex(), h.faucet.claimed)

	eligibility, err := h.client.FaucetEligibility(ctx, "bogus")
	require.NoError(t, err)
	require.False(t, eligibility.Eligible)
}

func TestClosedClientReportsNotInitialized(t *testing.T) {
	h := newHarness(t)
	h.client.Close()
	_, err := h.client.NetworkInfo(context.Background())
	require.True(t, xerrors.HasCode(err, xerrors.CodeNotInitialized))
}

type failingBackend struct {
	rpcBackend
	err error
}

func (f failingBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, f.err
}

func TestNetworkErrorsReadInEnglish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	client, err := NewWithBackend(Config{Name: "failing"}, failingBackend{rpcBackend: h.backend.Client(), err: errors.New("connection refused")})
	require.NoError(t, err)
	_, err = client.Balance(ctx, h.from.Hex())
	require.True(t, xerrors.HasCode(err, xerrors.CodeNetworkUnavailable))
	require.Equal(t, "failed to fetch balance: connection refused", xerrors.Describe(err))

	client, err = NewWithBackend(Config{Name: "slow"}, failingBackend{rpcBackend: h.backend.Client(), err: fmt.Errorf("rpc: %w", context.DeadlineExceeded)})
	require.NoError(t, err)
	_, err = client.Balance(ctx, h.from.Hex())
	require.Equal(t, "failed to fetch balance (timed out): rpc: context deadline exceeded", xerrors.Describe(err))
}
