// Package clayer is a small HTTP client for the Circle Layer assistant API.
package clayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Chat requests may wait on the chain or a completion provider, so it is
// longer than a typical REST call.
const DefaultHTTPTimeout = 90 * time.Second

// Client wraps the HTTP interactions with the assistant REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Message is one entry of a conversation transcript.
type Message struct {
	ID        int64           `json:"id"`
	Role      string          `json:"role"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      string          `json:"kind,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ChatReply is the answer to a synchronous chat message.
type ChatReply struct {
	SessionID string  `json:"session_id"`
	Message   Message `json:"message"`
	HTML      string  `json:"html"`
}

// Transcript is the full message list of a session.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// JobRequest submits a message for background processing. An ID may be set
// to make the submission idempotent.
type JobRequest struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// JobResult is the assistant response stored on a finished job.
type JobResult struct {
	Text     string          `json:"text"`
	Kind     string          `json:"kind"`
	Data     json.RawMessage `json:"data,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
}

// Job describes a background chat job.
type Job struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id,omitempty"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"max_retries"`
	LastError  string     `json:"last_error,omitempty"`
	ErrorCode  string     `json:"error_code,omitempty"`
	Result     *JobResult `json:"result,omitempty"`
	CreatedAt  int64      `json:"created_at"`
	UpdatedAt  int64      `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j Job) Finished() bool {
	return j.Status == "succeeded" || j.Status == "failed"
}

// JobStats aggregates job counts by status.
type JobStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// JobList is the response of ListJobs.
type JobList struct {
	Jobs  []Job    `json:"jobs"`
	Stats JobStats `json:"stats"`
}

// ListJobsOptions filters ListJobs. Zero values are omitted.
type ListJobsOptions struct {
	Status    string
	SessionID string
	Query     string
	Limit     int
	Offset    int
}

// AuditRecord is one dispatch in the audit trail.
type AuditRecord struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id,omitempty"`
	Message        string    `json:"message"`
	Intent         string    `json:"intent"`
	Kind           string    `json:"kind"`
	Response       string    `json:"response"`
	Error          string    `json:"error,omitempty"`
	DurationMillis int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransferCheck is the result of a transfer pre-validation.
type TransferCheck struct {
	OK    bool `json:"ok"`
	Check struct {
		ValidAddress  bool     `json:"valid_address"`
		EnoughBalance bool     `json:"enough_balance"`
		CanAffordGas  bool     `json:"can_afford_gas"`
		Balance       float64  `json:"balance"`
		Problems      []string `json:"problems,omitempty"`
	} `json:"check"`
}

// APIError represents a non 2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("clayer api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("clayer api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the assistant API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Chat sends one message. An empty sessionID starts a new session; the reply
// carries the session to use for follow-ups.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (ChatReply, error) {
	var reply ChatReply
	body := map[string]string{"session_id": sessionID, "message": message}
	if err := c.post(ctx, "/api/v1/chat", nil, body, &reply); err != nil {
		return ChatReply{}, err
	}
	return reply, nil
}

// CreateSession starts a session seeded with the welcome message.
func (c *Client) CreateSession(ctx context.Context) (Transcript, error) {
	var out Transcript
	if err := c.post(ctx, "/api/v1/sessions", nil, struct{}{}, &out); err != nil {
		return Transcript{}, err
	}
	return out, nil
}

// Messages returns the transcript of a session.
func (c *Client) Messages(ctx context.Context, sessionID string) (Transcript, error) {
	if sessionID == "" {
		return Transcript{}, errors.New("clayer: session id is required")
	}
	var out Transcript
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/messages", nil, &out); err != nil {
		return Transcript{}, err
	}
	return out, nil
}

// SubmitJob queues a message for background processing.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (Job, error) {
	var job Job
	if err := c.post(ctx, "/api/v1/jobs", nil, req, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// GetJob fetches a job by identifier.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	if id == "" {
		return Job{}, errors.New("clayer: job id is required")
	}
	var job Job
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ListJobs lists jobs together with aggregated stats.
func (c *Client) ListJobs(ctx context.Context, opts ListJobsOptions) (JobList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.SessionID != "" {
		q.Set("session_id", opts.SessionID)
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	var out JobList
	if err := c.get(ctx, "/api/v1/jobs", q, &out); err != nil {
		return JobList{}, err
	}
	return out, nil
}

// WaitJob polls GetJob every interval until the job finishes or ctx ends.
func (c *Client) WaitJob(ctx context.Context, id string, interval time.Duration) (Job, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return Job{}, err
		}
		if job.Finished() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Audit returns the most recent dispatch records.
func (c *Client) Audit(ctx context.Context, limit int) ([]AuditRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Records []AuditRecord `json:"records"`
	}
	if err := c.get(ctx, "/api/v1/audit", q, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// ValidateTransfer checks a transfer before it is sent.
func (c *Client) ValidateTransfer(ctx context.Context, to string, amount float64) (TransferCheck, error) {
	var out TransferCheck
	body := map[string]any{"to": to, "amount": amount}
	if err := c.post(ctx, "/api/v1/transfers/validate", nil, body, &out); err != nil {
		return TransferCheck{}, err
	}
	return out, nil
}

// Health reports whether the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, query, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			wrapped := struct {
				Error *APIError `json:"error"`
			}{Error: apiErr}
			if err := json.Unmarshal(data, &wrapped); err != nil || apiErr.Code == "" {
				_ = json.Unmarshal(data, apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
