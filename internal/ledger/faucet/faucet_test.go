package faucet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "CircleLayer-Assistant/internal/errors"
)

const addr = "0x742d35Cc6634C0532925a3b8D1e7e98a8A16D7c9"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }
	return client
}

func TestClaimSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/claim", r.URL.Path)
		var body claimRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, addr, body.Address)
		require.Equal(t, "testnet", body.Network)
		_ = json.NewEncoder(w).Encode(map[string]string{"txHash": "0xfeed"})
	})

	claim, err := client.Claim(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, claim.Success)
	require.Equal(t, "0xfeed", claim.TxHash)
	require.Equal(t, ClaimAmount, claim.Amount)
	require.Equal(t, time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC), claim.NextClaimTime)
}

func TestClaimFailureClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   xerrors.Code
	}{
		{"too many requests", http.StatusTooManyRequests, `{}`, xerrors.CodeRateLimited},
		{"rate limit text", http.StatusBadRequest, `{"error":"rate limit exceeded"}`, xerrors.CodeRateLimited},
		{"24 hours text", http.StatusForbidden, `{"error":"already claimed in the last 24 hours"}`, xerrors.CodeRateLimited},
		{"invalid", http.StatusBadRequest, `{"error":"Invalid address"}`, xerrors.CodeInvalidAddress},
		{"other", http.StatusInternalServerError, `{"error":"faucet empty"}`, xerrors.CodeFaucetFailure},
		{"non json", http.StatusBadGateway, `upstream down`, xerrors.CodeFaucetFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Claim(context.Background(), addr)
			require.Error(t, err)
			require.Equal(t, tc.code, xerrors.CodeOf(err))
		})
	}
}

func TestClaimRejectsBadAddressWithoutRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := client.Claim(context.Background(), "0x1234")
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidAddress))
	require.False(t, called)
}

func TestClaimTransportFailure(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)
	_, err = client.Claim(context.Background(), addr)
	require.True(t, xerrors.HasCode(err, xerrors.CodeFaucetFailure))
}

func TestEligibility(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eligibility/"+addr, r.URL.Path)
		_, _ = w.Write([]byte(`{"eligible":false,"lastClaim":"2025-07-31T12:00:00Z","nextClaim":"2025-08-01T12:00:00Z","timeRemaining":43200}`))
	})

	result, err := client.Eligibility(context.Background(), addr)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.NotNil(t, result.NextClaim)
	require.Equal(t, 12*time.Hour, result.TimeRemaining)
	require.Equal(t, DailyLimit, result.DailyLimit)
}

func TestEligibilityFallsBackToEligible(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	result, err := client.Eligibility(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, result.Eligible)
	require.Zero(t, result.TimeRemaining)

	invalid, err := client.Eligibility(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, invalid.Eligible)
	require.Equal(t, "Invalid wallet address", invalid.Reason)
}
