package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CircleLayer-Assistant/internal/cache"
	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/ledger/ledgertest"
)

const wallet = "0x742d35Cc6634C0532925a3b8D1e7e98a8A16D7c9"

func TestParseAndFormatUnits(t *testing.T) {
	wei, err := ledger.ParseEther(1.5)
	require.NoError(t, err)
	require.Equal(t, "1500000000000000000", wei.String())
	require.Equal(t, "1.5", ledger.FormatEther(wei))

	one, err := ledger.ParseEther(1)
	require.NoError(t, err)
	require.Equal(t, "1.0", ledger.FormatEther(one))

	require.Equal(t, "0.000021", ledger.FormatEther(big.NewInt(21_000_000_000_000)))
	require.Equal(t, "20.0", ledger.FormatGwei(big.NewInt(20_000_000_000)))
	require.Equal(t, "-0.5", ledger.FormatUnits(big.NewInt(-5), 1))
	require.Equal(t, "0.0", ledger.FormatEther(nil))

	_, err = ledger.ParseEther(-1)
	require.True(t, xerrors.HasCode(err, xerrors.CodeValidationFailed))
	_, err = ledger.ParseUnits("1.2345", 2)
	require.Error(t, err)
	_, err = ledger.ParseUnits("1e5", 18)
	require.Error(t, err)

	v, err := ledger.ParseUnits(".25", 2)
	require.NoError(t, err)
	require.Equal(t, int64(25), v.Int64())
}

func TestValidateAddress(t *testing.T) {
	require.True(t, ledger.ValidateAddress(wallet))
	require.True(t, ledger.ValidateAddress("0x0000000000000000000000000000000000000000"))
	require.False(t, ledger.ValidateAddress("742d35Cc6634C0532925a3b8D1e7e98a8A16D7c9aa"))
	require.False(t, ledger.ValidateAddress("0x742d35Cc6634C0532925a3b8D1e7e98a8A16D7c"))
	require.False(t, ledger.ValidateAddress("0xZZ2d35Cc6634C0532925a3b8D1e7e98a8A16D7c9"))
	require.False(t, ledger.ValidateAddress(""))
}

func TestFormatAddress(t *testing.T) {
	require.Equal(t, "0x742d...D7c9", ledger.FormatAddress(wallet))
	require.Equal(t, "", ledger.FormatAddress(""))
	require.Equal(t, "0xabc", ledger.FormatAddress("0xabc"))
}

func TestValidateTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid address stops early", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		check := ledger.ValidateTransfer(ctx, fake, "0x123", 1)
		require.False(t, check.OK())
		require.False(t, fake.Called("Balance"))
	})

	t.Run("balance covers amount but not gas", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.BalanceValue.Balance = "1.0"
		fake.Estimate = ledger.GasEstimate{GasLimit: 21000, TotalCost: "0.001"}
		check := ledger.ValidateTransfer(ctx, fake, wallet, 1)
		require.True(t, check.EnoughBalance)
		require.False(t, check.CanAffordGas)
		require.Contains(t, check.Problems[0], "Total cost: 1.001000 CLAYER")
	})

	t.Run("all checks pass", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.BalanceValue.Balance = "10.0"
		fake.Estimate = ledger.GasEstimate{GasLimit: 21000, TotalCost: "0.000021"}
		check := ledger.ValidateTransfer(ctx, fake, wallet, 1)
		require.True(t, check.OK())
		require.NotNil(t, check.GasEstimate)
	})

	t.Run("gas estimate failure is reported", func(t *testing.T) {
		fake := ledgertest.New(wallet)
		fake.BalanceValue.Balance = "10.0"
		fake.EstimateErr = errors.New("execution reverted")
		check := ledger.ValidateTransfer(ctx, fake, wallet, 1)
		require.Equal(t, []string{"Could not estimate gas fees"}, check.Problems)
	})
}

func TestCachedClientServesNetworkInfoFromCache(t *testing.T) {
	ctx := context.Background()
	fake := ledgertest.New(wallet)
	fake.Network.BlockNumber = 42

	client := ledger.NewCachedClient(fake, cache.NewMemory(), time.Minute)

	first, err := client.NetworkInfo(ctx)
	require.NoError(t, err)
	fake.Network.BlockNumber = 43
	second, err := client.NetworkInfo(ctx)
	require.NoError(t, err)

	require.Equal(t, uint64(42), first.BlockNumber)
	require.Equal(t, first, second)

	networkCalls := 0
	for _, c := range fake.Calls() {
		if c == "NetworkInfo" {
			networkCalls++
		}
	}
	require.Equal(t, 1, networkCalls)

	// Other methods pass straight through.
	require.Equal(t, wallet, client.Address())

	client.Close()
	require.True(t, fake.Closed())
}

func TestCachedClientDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	fake := ledgertest.New(wallet)
	fake.NetworkErr = errors.New("dial tcp: refused")
	client := ledger.NewCachedClient(fake, cache.NewMemory(), time.Minute)

	_, err := client.NetworkInfo(ctx)
	require.Error(t, err)

	fake.NetworkErr = nil
	info, err := client.NetworkInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "28525", info.ChainID)
}

func TestParseChainDefinitions(t *testing.T) {
	defs, err := ledger.ParseChainDefinitions([]byte(`
chains:
  circlelayer-testnet:
    type: evm
    rpc_url: https://testnet-rpc.circlelayer.com
    chain_id: 28525
    explorer_url: https://explorer-testnet.circlelayer.com
    scan_depth: 50
`))
	require.NoError(t, err)
	chain := defs.Chains["circlelayer-testnet"]
	require.Equal(t, int64(28525), chain.ChainID)
	require.Equal(t, 50, chain.ScanDepth)

	_, err = ledger.ParseChainDefinitions([]byte("chains:\n  broken:\n    type: evm\n"))
	require.Error(t, err)

	empty, err := ledger.LoadChainDefinitions("")
	require.NoError(t, err)
	require.Empty(t, empty.Chains)
}
