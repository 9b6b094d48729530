package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type routeKey struct {
	handler string
	method  string
}

type dispatchKey struct {
	intent string
	kind   string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu              sync.Mutex
	requests        map[requestKey]uint64
	errors          map[routeKey]uint64
	latency         map[routeKey]*histogram
	dispatches      map[dispatchKey]uint64
	failures        map[string]uint64
	dispatchLatency *histogram
	jobs            map[string]uint64
}

var defaultCollector = newCollector()

func newCollector() *collector {
	return &collector{
		requests:        make(map[requestKey]uint64),
		errors:          make(map[routeKey]uint64),
		latency:         make(map[routeKey]*histogram),
		dispatches:      make(map[dispatchKey]uint64),
		failures:        make(map[string]uint64),
		dispatchLatency: newHistogram(),
		jobs:            make(map[string]uint64),
	}
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c := defaultCollector
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{handler: handler, method: method, code: strconv.Itoa(status)}]++
	key := routeKey{handler: handler, method: method}
	if status >= 500 {
		c.errors[key]++
	}
	hist := c.latency[key]
	if hist == nil {
		hist = newHistogram()
		c.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

// ObserveDispatch records one assistant dispatch. Failed dispatches are
// additionally counted by intent.
func ObserveDispatch(intent, kind string, duration time.Duration, failed bool) {
	c := defaultCollector
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dispatches[dispatchKey{intent: intent, kind: kind}]++
	if failed {
		c.failures[intent]++
	}
	c.dispatchLatency.observe(duration.Seconds())
}

// ObserveJob counts background job outcomes (succeeded, retried, failed, degraded).
func ObserveJob(outcome string) {
	c := defaultCollector
	c.mu.Lock()
	c.jobs[outcome]++
	c.mu.Unlock()
}

// Middleware instruments an HTTP handler. The route pattern resolved by chi
// is used as the handler label so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ObserveHTTPRequest(routePattern(r), r.Method, status, time.Since(start))
	})
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// observe counts value into every bucket whose bound is not below it. Values
// above the last bound only show up in the +Inf bucket via count.
func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, defaultCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.Grow(2048)

	b.WriteString("# HELP clayer_http_requests_total Total number of HTTP requests processed.\n")
	b.WriteString("# TYPE clayer_http_requests_total counter\n")
	reqKeys := make([]requestKey, 0, len(c.requests))
	for k := range c.requests {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		a, z := reqKeys[i], reqKeys[j]
		if a.handler != z.handler {
			return a.handler < z.handler
		}
		if a.method != z.method {
			return a.method < z.method
		}
		return a.code < z.code
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "clayer_http_requests_total{handler=\"%s\",method=\"%s\",code=\"%s\"} %d\n",
			escape(k.handler), escape(k.method), escape(k.code), c.requests[k])
	}

	b.WriteString("# HELP clayer_http_request_errors_total Total number of HTTP requests that resulted in a server error.\n")
	b.WriteString("# TYPE clayer_http_request_errors_total counter\n")
	for _, k := range sortedRoutes(c.errors) {
		fmt.Fprintf(&b, "clayer_http_request_errors_total{handler=\"%s\",method=\"%s\"} %d\n",
			escape(k.handler), escape(k.method), c.errors[k])
	}

	b.WriteString("# HELP clayer_http_request_duration_seconds HTTP request duration in seconds.\n")
	b.WriteString("# TYPE clayer_http_request_duration_seconds histogram\n")
	latKeys := make([]routeKey, 0, len(c.latency))
	for k := range c.latency {
		latKeys = append(latKeys, k)
	}
	sortRouteKeys(latKeys)
	for _, k := range latKeys {
		labels := fmt.Sprintf("handler=\"%s\",method=\"%s\"", escape(k.handler), escape(k.method))
		writeHistogram(&b, "clayer_http_request_duration_seconds", labels, c.latency[k])
	}

	b.WriteString("# HELP clayer_dispatch_total Assistant dispatches by intent and response kind.\n")
	b.WriteString("# TYPE clayer_dispatch_total counter\n")
	dispatchKeys := make([]dispatchKey, 0, len(c.dispatches))
	for k := range c.dispatches {
		dispatchKeys = append(dispatchKeys, k)
	}
	sort.Slice(dispatchKeys, func(i, j int) bool {
		if dispatchKeys[i].intent != dispatchKeys[j].intent {
			return dispatchKeys[i].intent < dispatchKeys[j].intent
		}
		return dispatchKeys[i].kind < dispatchKeys[j].kind
	})
	for _, k := range dispatchKeys {
		fmt.Fprintf(&b, "clayer_dispatch_total{intent=\"%s\",kind=\"%s\"} %d\n", escape(k.intent), escape(k.kind), c.dispatches[k])
	}

	b.WriteString("# HELP clayer_dispatch_failures_total Dispatches whose handler failed or panicked.\n")
	b.WriteString("# TYPE clayer_dispatch_failures_total counter\n")
	for _, k := range sortedKeys(c.failures) {
		fmt.Fprintf(&b, "clayer_dispatch_failures_total{intent=\"%s\"} %d\n", escape(k), c.failures[k])
	}

	b.WriteString("# HELP clayer_dispatch_duration_seconds Assistant dispatch duration in seconds.\n")
	b.WriteString("# TYPE clayer_dispatch_duration_seconds histogram\n")
	writeHistogram(&b, "clayer_dispatch_duration_seconds", "", c.dispatchLatency)

	b.WriteString("# HELP clayer_jobs_total Background job outcomes.\n")
	b.WriteString("# TYPE clayer_jobs_total counter\n")
	for _, k := range sortedKeys(c.jobs) {
		fmt.Fprintf(&b, "clayer_jobs_total{outcome=\"%s\"} %d\n", escape(k), c.jobs[k])
	}

	return b.String()
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	prefix := labels
	if prefix != "" {
		prefix += ","
	}
	for idx, bound := range h.buckets {
		fmt.Fprintf(b, "%s_bucket{%sle=\"%s\"} %d\n", name, prefix, formatFloat(bound), h.counts[idx])
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", name, prefix, h.count)
	if labels == "" {
		fmt.Fprintf(b, "%s_sum %s\n%s_count %d\n", name, formatFloat(h.sum), name, h.count)
		return
	}
	fmt.Fprintf(b, "%s_sum{%s} %s\n%s_count{%s} %d\n", name, labels, formatFloat(h.sum), name, labels, h.count)
}

func sortedRoutes(m map[routeKey]uint64) []routeKey {
	keys := make([]routeKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortRouteKeys(keys)
	return keys
}

func sortRouteKeys(keys []routeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].handler != keys[j].handler {
			return keys[i].handler < keys[j].handler
		}
		return keys[i].method < keys[j].method
	})
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
