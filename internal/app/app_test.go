package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CircleLayer-Assistant/internal/cache"
	"CircleLayer-Assistant/internal/config"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/ledger/ledgertest"
	"CircleLayer-Assistant/internal/llm"
	"CircleLayer-Assistant/internal/task"
)

const wallet = "0x2222222222222222222222222222222222222222"

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(`
farms:
  - name: Test Farm
    token: CLAYER
    apy: 1%
`), 0o600))
	path := filepath.Join(dir, "assistant.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"catalog":{"path":"catalog.yaml"},"tasks":{"workers":2}}`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func buildApp(t *testing.T) (*App, *ledgertest.Fake) {
	t.Helper()
	fake := ledgertest.New(wallet)
	fake.BalanceValue = ledger.Balance{Balance: "3.5", Address: wallet, Currency: ledger.Currency}
	completion := llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return "Circle Layer is an EVM chain.", nil
	})

	a, err := Build(context.Background(), loadConfig(t), WithLedger(fake), WithCompletion(completion))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a, fake
}

func TestBuildWiresCatalogAndAudit(t *testing.T) {
	a, _ := buildApp(t)
	require.Nil(t, a.Chains)
	require.Nil(t, a.Watcher)

	resp := a.Assistant.Handle(context.Background(), "show farms")
	require.Contains(t, resp.Text, "Test Farm")

	records, err := a.Audit.ListLatest(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "farming", records[0].Intent)
	require.Equal(t, "farming", records[0].Kind)
}

func TestBuildServesHTTP(t *testing.T) {
	a, _ := buildApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"what is my balance"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "3.5")
}

func TestBuildRunsJobs(t *testing.T) {
	a, _ := buildApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Processor.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	submitted, err := a.Tasks.Submit(ctx, task.Request{SessionID: "s-1", Message: "what is circle layer"})
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	finished, err := a.Tasks.WaitUntilCompleted(waitCtx, submitted.ID, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, task.StatusSucceeded, finished.Status)
	require.Equal(t, "ai", finished.Result.Kind)
	require.Equal(t, "Circle Layer is an EVM chain.", finished.Result.Text)

	records, err := a.Audit.ListLatest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "s-1", records[0].SessionID)
}

func TestBuildRejectsUnknownDrivers(t *testing.T) {
	cfg := loadConfig(t)
	cfg.LLM.Provider = "llama"
	_, err := Build(context.Background(), cfg, WithLedger(ledgertest.New(wallet)))
	require.Error(t, err)

	cfg = loadConfig(t)
	cfg.Tasks.Queue = "kafka"
	_, err = Build(context.Background(), cfg, WithLedger(ledgertest.New(wallet)), WithCompletion(llm.Unavailable{}))
	require.Error(t, err)

	_, err = Build(context.Background(), nil)
	require.Error(t, err)
}

func TestOpenCache(t *testing.T) {
	store, err := openCache(context.Background(), config.CacheConfig{Driver: "none"})
	require.NoError(t, err)
	require.Nil(t, store)

	store, err = openCache(context.Background(), config.CacheConfig{Driver: "memory"})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, store.Close())

	_, err = openCache(context.Background(), config.CacheConfig{Driver: "memcached"})
	require.Error(t, err)
}

type closeCounter struct {
	cache.Cache
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.Cache.Close()
}

func TestCloseReleasesLedgerCache(t *testing.T) {
	store := &closeCounter{Cache: cache.NewMemory()}
	fake := ledgertest.New(wallet)
	a := &App{}

	client := a.cacheLedger(fake, store, time.Minute)
	_, err := client.NetworkInfo(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.Equal(t, 1, store.closed)
	require.NoError(t, a.Close())
	require.Equal(t, 1, store.closed)

	none := &App{}
	none.cacheLedger(fake, nil, time.Minute)
	require.Empty(t, none.closers)
}
