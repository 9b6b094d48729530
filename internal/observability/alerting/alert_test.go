package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/pkg/logger"
)

type recordingNotifier struct {
	channel Channel
	events  []Event
	err     error
}

func (r *recordingNotifier) Channel() Channel { return r.channel }

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func sampleEvent() Event {
	return Event{
		Code:       "TASK_RETRIES_EXHAUSTED",
		Message:    "completion unavailable",
		Severity:   xerrors.SeverityCritical,
		TaskID:     "job-1",
		Attempts:   3,
		MaxRetries: 3,
		Metadata:   map[string]string{"stage": "terminal"},
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{channel: ChannelLog}
	failing := &recordingNotifier{channel: ChannelWebhook, err: errors.New("boom")}
	d := NewFanout(ok, failing, nil)

	require.Equal(t, []Channel{ChannelLog, ChannelWebhook}, d.Channels())
	err := d.Notify(context.Background(), sampleEvent())
	require.ErrorContains(t, err, "channel webhook: boom")
	require.Len(t, ok.events, 1)
	require.Len(t, failing.events, 1)

	var nilDispatcher *FanoutDispatcher
	require.NoError(t, nilDispatcher.Notify(context.Background(), sampleEvent()))
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	require.NoError(t, n.Notify(context.Background(), sampleEvent()))

	payload := <-received
	require.Equal(t, "[critical] TASK_RETRIES_EXHAUSTED - completion unavailable (task job-1, attempt 3/3)", payload.Text)
	require.Equal(t, "job-1", payload.Event.TaskID)
}

func TestWebhookNotifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	require.ErrorContains(t, NewWebhookNotifier(srv.URL, time.Second).Notify(context.Background(), sampleEvent()), "502")

	logger.Use(logger.Discard(), logger.Discard())
	require.NoError(t, NewWebhookNotifier("", 0).Notify(context.Background(), sampleEvent()))
	require.NoError(t, LogNotifier{}.Notify(context.Background(), sampleEvent()))
}
