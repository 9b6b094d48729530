// Package faucet talks to the Circle Layer testnet faucet HTTP API.
package faucet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/pkg/logger"
)

const (
	// ClaimAmount is what a successful claim dispenses.
	ClaimAmount = "1.0"
	// DailyLimit is shown to users alongside eligibility.
	DailyLimit   = "1 CLAYER"
	claimWindow  = 24 * time.Hour
	network      = "testnet"
	maxBodyBytes = 1 << 20
)

// Config describes the faucet endpoint.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client implements ledger.Faucet over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// New creates a faucet client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("faucet base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid faucet url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, http: httpClient, now: time.Now}, nil
}

type claimRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

type claimResponse struct {
	TxHash  string `json:"txHash"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Claim requests testnet tokens for address. Failures are classified as
// RATE_LIMITED, INVALID_ADDRESS or FAUCET_ERROR.
func (c *Client) Claim(ctx context.Context, address string) (ledger.FaucetClaim, error) {
	if !ledger.ValidateAddress(address) {
		return ledger.FaucetClaim{}, xerrors.New(xerrors.CodeInvalidAddress,
			"Please provide a valid EVM-compatible wallet address.")
	}

	payload, err := json.Marshal(claimRequest{Address: address, Network: network})
	if err != nil {
		return ledger.FaucetClaim{}, xerrors.Wrap(xerrors.CodeFaucetFailure, err, "Faucet claim failed")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/claim", bytes.NewReader(payload))
	if err != nil {
		return ledger.FaucetClaim{}, xerrors.Wrap(xerrors.CodeFaucetFailure, err, "Faucet claim failed")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ledger.FaucetClaim{}, xerrors.Wrap(xerrors.CodeFaucetFailure, err, "Faucet claim failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ledger.FaucetClaim{}, xerrors.Wrap(xerrors.CodeFaucetFailure, err, "Faucet claim failed")
	}
	var decoded claimResponse
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ledger.FaucetClaim{
			Success:       true,
			TxHash:        decoded.TxHash,
			Amount:        ClaimAmount,
			Address:       address,
			Message:       "Successfully claimed 1 CLAYER tokens!",
			NextClaimTime: c.now().Add(claimWindow),
		}, nil
	}

	reason := decoded.Error
	if reason == "" {
		reason = decoded.Message
	}
	if reason == "" {
		reason = "Faucet claim failed"
	}
	return ledger.FaucetClaim{}, c.classify(resp.StatusCode, reason)
}

func (c *Client) classify(status int, reason string) error {
	lower := strings.ToLower(reason)
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(lower, "rate limit") || strings.Contains(lower, "24 hours"):
		next := c.now().Add(claimWindow)
		return xerrors.New(xerrors.CodeRateLimited,
			"You can only claim once every 24 hours. Please try again tomorrow.",
			xerrors.WithMetadata("next_claim_time", next.UTC().Format(time.RFC3339)))
	case strings.Contains(lower, "invalid"):
		return xerrors.New(xerrors.CodeInvalidAddress, "Please provide a valid EVM-compatible wallet address.")
	default:
		return xerrors.New(xerrors.CodeFaucetFailure, "Faucet claim failed: "+reason,
			xerrors.WithMetadata("status", fmt.Sprint(status)))
	}
}

type eligibilityResponse struct {
	Eligible      bool       `json:"eligible"`
	LastClaim     *time.Time `json:"lastClaim"`
	NextClaim     *time.Time `json:"nextClaim"`
	TimeRemaining int64      `json:"timeRemaining"`
}

// Eligibility asks the faucet whether address may claim. When the faucet is
// unreachable or answers with an error the address is reported eligible.
func (c *Client) Eligibility(ctx context.Context, address string) (ledger.FaucetEligibility, error) {
	if !ledger.ValidateAddress(address) {
		return ledger.FaucetEligibility{Eligible: false, Reason: "Invalid wallet address", DailyLimit: DailyLimit}, nil
	}

	fallback := func(cause error) ledger.FaucetEligibility {
		logger.Named("faucet").Warn("faucet eligibility unavailable, assuming eligible",
			"address", address, "error", cause)
		now := c.now()
		return ledger.FaucetEligibility{Eligible: true, NextClaim: &now, DailyLimit: DailyLimit}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/eligibility/"+url.PathEscape(address), nil)
	if err != nil {
		return fallback(err), nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fallback(err), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fallback(fmt.Errorf("status %d", resp.StatusCode)), nil
	}

	var decoded eligibilityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&decoded); err != nil {
		return fallback(err), nil
	}
	return ledger.FaucetEligibility{
		Eligible:      decoded.Eligible,
		LastClaim:     decoded.LastClaim,
		NextClaim:     decoded.NextClaim,
		DailyLimit:    DailyLimit,
		TimeRemaining: time.Duration(decoded.TimeRemaining) * time.Second,
	}, nil
}

var _ ledger.Faucet = (*Client)(nil)
