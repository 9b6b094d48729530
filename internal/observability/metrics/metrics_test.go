package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, "text/plain; version=0.0.4", rec.Header().Get("Content-Type"))
	return rec.Body.String()
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/probe/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, path := range []string{"/probe/1", "/probe/2", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t)
	require.Contains(t, body, `clayer_http_requests_total{handler="/probe/{id}",method="GET",code="418"} 2`)
	require.Contains(t, body, `clayer_http_request_errors_total{handler="/boom",method="GET"} 1`)
	require.Contains(t, body, `clayer_http_request_duration_seconds_count{handler="/probe/{id}",method="GET"} 2`)
}

func TestDispatchAndJobCounters(t *testing.T) {
	ObserveDispatch("metrics-test", "balance", 20*time.Millisecond, false)
	ObserveDispatch("metrics-test", "error", 3*time.Second, true)
	ObserveJob("metrics-test-outcome")

	body := scrape(t)
	require.Contains(t, body, `clayer_dispatch_total{intent="metrics-test",kind="balance"} 1`)
	require.Contains(t, body, `clayer_dispatch_total{intent="metrics-test",kind="error"} 1`)
	require.Contains(t, body, `clayer_dispatch_failures_total{intent="metrics-test"} 1`)
	require.Contains(t, body, `clayer_jobs_total{outcome="metrics-test-outcome"} 1`)
	require.True(t, strings.Contains(body, "clayer_dispatch_duration_seconds_bucket{le=\"+Inf\"}"))
}

func TestHistogramBuckets(t *testing.T) {
	h := newHistogram()
	h.observe(0.07)
	h.observe(20)
	require.Equal(t, uint64(0), h.counts[0])
	require.Equal(t, uint64(1), h.counts[1])
	require.Equal(t, uint64(1), h.counts[len(h.counts)-1])
	require.Equal(t, uint64(2), h.count)
}

func TestEscape(t *testing.T) {
	require.Equal(t, `a\"b\\c`, escape("a\"b\\c\n"))
}
