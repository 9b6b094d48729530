package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assistant.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"ledger": {"chain_config": "chains.yaml", "explorer_url": "https://explorer.example/"},
		"llm": {"openai": {"api_key": "sk-test"}},
		"catalog": {"path": "catalog.yaml"}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, filepath.Join(dir, "chains.yaml"), cfg.Ledger.ChainConfig)
	require.Empty(t, cfg.Ledger.RPCURL)
	require.Equal(t, "https://explorer.example", cfg.Ledger.ExplorerURL)
	require.Equal(t, 100, cfg.Ledger.ScanDepth)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, "gpt-3.5-turbo", cfg.LLM.OpenAI.Model)
	require.Equal(t, 800, cfg.LLM.OpenAI.MaxTokens)
	require.InDelta(t, 0.7, cfg.LLM.OpenAI.TemperatureValue(), 1e-6)
	require.Equal(t, filepath.Join(dir, "catalog.yaml"), cfg.Catalog.Path)
	require.Equal(t, filepath.Join(dir, "data", "audit.jsonl"), cfg.Audit.Path)
	require.Equal(t, "memory", cfg.Tasks.Queue)
	require.Equal(t, 2, cfg.Tasks.RabbitMQ.Prefetch)
}

func TestLoadKeepsZeroTemperature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assistant.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm": {"openai": {"temperature": 0}}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.LLM.OpenAI.Temperature)
	require.Zero(t, cfg.LLM.OpenAI.TemperatureValue())
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("CLAYER_RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("CLAYER_LISTEN_ADDR", ":9090")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8545", cfg.Ledger.RPCURL)
	require.Equal(t, ":9090", cfg.Server.Address)
	require.Equal(t, "gemini", cfg.LLM.Provider)
	require.Equal(t, "https://explorer-testnet.circlelayer.com", cfg.Ledger.ExplorerURL)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLAYER_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CLAYER_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	require.Equal(t, "loaded", os.Getenv("CLAYER_TEST_DOTENV"))
}

type fakeSSM struct {
	values map[string]string
	calls  []string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls = append(f.calls, *in.Name)
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("decryption not requested")
	}
	v, ok := f.values[*in.Name]
	if !ok {
		return nil, errors.New("parameter not found")
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: &v}}, nil
}

func TestResolveSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Ledger.PrivateKey = "ssm:/clayer/private-key"
	cfg.LLM.OpenAI.APIKey = "plain-key"
	require.True(t, cfg.NeedsSecrets())

	api := &fakeSSM{values: map[string]string{"/clayer/private-key": "0xabc"}}
	require.NoError(t, ResolveSecrets(context.Background(), cfg, api))
	require.Equal(t, "0xabc", cfg.Ledger.PrivateKey)
	require.Equal(t, "plain-key", cfg.LLM.OpenAI.APIKey)
	require.Equal(t, []string{"/clayer/private-key"}, api.calls)
	require.False(t, cfg.NeedsSecrets())
}

func TestResolveSecretsErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Audit.DSN = "ssm:/missing"
	require.Error(t, ResolveSecrets(context.Background(), cfg, nil))
	require.Error(t, ResolveSecrets(context.Background(), cfg, &fakeSSM{}))

	require.NoError(t, ResolveSecrets(context.Background(), &Config{}, nil))
}
