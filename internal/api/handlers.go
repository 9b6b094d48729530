package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"CircleLayer-Assistant/internal/assistant"
	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/render"
	"CircleLayer-Assistant/internal/session"
	"CircleLayer-Assistant/internal/task"
)

const maxMessageLength = 4000

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string              `json:"session_id"`
	Message   session.ChatMessage `json:"message"`
	HTML      string              `json:"html"`
}

type sessionResponse struct {
	SessionID string                `json:"session_id"`
	Messages  []session.ChatMessage `json:"messages"`
}

type transferRequest struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.deps.Sessions.Count(),
	})
}

// handleChat 处理一条同步对话消息。session_id 为空或已失效时创建新会话。
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "assistant not initialized"))
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-Id")
	}
	if err := validateMessage(req.Message); err != nil {
		writeError(w, err)
		return
	}

	conv := s.deps.Sessions.GetOrCreate(req.SessionID)
	conv.AppendUser(req.Message)

	ctx, cancel := context.WithTimeout(assistant.WithSession(r.Context(), conv.ID()), s.chatTimeout)
	defer cancel()
	resp := s.deps.Assistant.Handle(ctx, req.Message)
	reply := conv.AppendAssistant(resp.Text, string(resp.Kind), resp.Data)

	w.Header().Set("X-Session-Id", conv.ID())
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: conv.ID(),
		Message:   reply,
		HTML:      render.Format(resp.Text),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	conv := s.deps.Sessions.Create()
	w.Header().Set("X-Session-Id", conv.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: conv.ID(), Messages: conv.Messages()})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: conv.ID(), Messages: conv.Messages()})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "job service not configured"))
		return
	}
	var req task.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateMessage(req.Message); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.deps.Tasks.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "job service not configured"))
		return
	}
	q := r.URL.Query()
	opts := []task.ListOption{task.WithLimit(queryInt(r, "limit", 20)), task.WithOffset(queryInt(r, "offset", 0))}
	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, task.Status(strings.TrimSpace(part)))
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if sid := q.Get("session_id"); sid != "" {
		opts = append(opts, task.WithSession(sid))
	}
	if query := q.Get("q"); query != "" {
		opts = append(opts, task.WithQuery(query))
	}
	if q.Get("order") == "asc" {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}

	jobs, err := s.deps.Tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.deps.Tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "stats": stats})
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "job service not configured"))
		return
	}
	job, err := s.deps.Tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "audit store not configured"))
		return
	}
	records, err := s.deps.Audit.ListLatest(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeStorageFailure, err, "failed to read audit records"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleValidateTransfer 在发送前检查收款地址、余额与 gas 是否足够。
func (s *Server) handleValidateTransfer(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeError(w, xerrors.New(xerrors.CodeNotInitialized, "Wallet not initialized"))
		return
	}
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, xerrors.New(xerrors.CodeValidationFailed, "amount must be positive"))
		return
	}
	check := ledger.ValidateTransfer(r.Context(), s.deps.Ledger, req.To, req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"ok": check.OK(), "check": check})
}

func validateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return xerrors.New(xerrors.CodeValidationFailed, "message is required")
	}
	if len(message) > maxMessageLength {
		return xerrors.New(xerrors.CodeValidationFailed, "message is too long",
			xerrors.WithMetadata("max_length", strconv.Itoa(maxMessageLength)))
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return xerrors.Wrap(xerrors.CodeValidationFailed, err, "invalid JSON body")
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 将统一错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	body := errorBody{Code: string(code), Message: xerrors.Describe(err)}
	if e, ok := xerrors.From(err); ok {
		body.Metadata = e.Metadata()
	}
	writeJSON(w, statusFor(code), map[string]errorBody{"error": body})
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeValidationFailed, xerrors.CodeInvalidAddress, task.CodeTaskValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, task.CodeTaskNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case xerrors.CodeNotInitialized, xerrors.CodeServiceUnavailable, xerrors.CodeNetworkUnavailable:
		return http.StatusServiceUnavailable
	case task.CodeTaskPublish, xerrors.CodeQueueFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
