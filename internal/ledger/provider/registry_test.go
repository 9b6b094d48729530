package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"CircleLayer-Assistant/internal/config"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func writeChains(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRegistryFromDefinitions(t *testing.T) {
	path := writeChains(t, `
chains:
  circlelayer-testnet:
    rpc_url: http://127.0.0.1:8545
    explorer_url: https://explorer-testnet.circlelayer.com/
  local:
    type: evm
    rpc_url: http://127.0.0.1:9545
`)

	registry, err := NewRegistry(context.Background(), config.LedgerConfig{
		ChainConfig:  path,
		DefaultChain: "circlelayer-testnet",
		PrivateKey:   testKey,
		ExplorerURL:  "https://fallback.example",
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	require.Equal(t, []string{"circlelayer-testnet", "local"}, registry.Chains())

	def, err := registry.Default()
	require.NoError(t, err)
	require.Equal(t, "https://explorer-testnet.circlelayer.com", def.ExplorerURL)
	require.NotEmpty(t, def.Client.Address())

	local, ok := registry.Chain("local")
	require.True(t, ok)
	require.Equal(t, "https://fallback.example", local.ExplorerURL)
}

func TestRegistryFallsBackToRPCURL(t *testing.T) {
	registry, err := NewRegistry(context.Background(), config.LedgerConfig{RPCURL: "http://127.0.0.1:8545"})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	chain, err := registry.Default()
	require.NoError(t, err)
	require.Equal(t, "default", chain.Name)
	require.Empty(t, chain.Client.Address())
}

func TestRegistryErrors(t *testing.T) {
	_, err := NewRegistry(context.Background(), config.LedgerConfig{})
	require.Error(t, err)

	path := writeChains(t, "chains:\n  sol:\n    type: solana\n    rpc_url: http://127.0.0.1:1\n")
	_, err = NewRegistry(context.Background(), config.LedgerConfig{ChainConfig: path})
	require.Error(t, err)

	path = writeChains(t, "chains:\n  a:\n    rpc_url: http://127.0.0.1:1\n")
	_, err = NewRegistry(context.Background(), config.LedgerConfig{ChainConfig: path, DefaultChain: "b"})
	require.Error(t, err)
}
