package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument measures RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label
// cardinality stays bounded without a pattern-aware router.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for _, res := range canonicalResources {
		if !matchesPrefix(segments, res.prefix) {
			continue
		}
		if len(segments) == len(res.prefix)+2 {
			collapsed := append([]string{}, segments[:len(res.prefix)+1]...)
			collapsed = append(collapsed, ":id")
			return strings.Join(collapsed, "/")
		}
		if len(segments) == len(res.prefix)+3 && res.sub[segments[len(segments)-1]] {
			collapsed := append([]string{}, segments[:len(res.prefix)+1]...)
			collapsed = append(collapsed, ":id", segments[len(segments)-1])
			return strings.Join(collapsed, "/")
		}
	}
	return path
}

var canonicalResources = []struct {
	prefix []string
	sub    map[string]bool
}{
	{prefix: []string{"v1", "apikeys"}},
	{prefix: []string{"v1", "organizations"}},
	{prefix: []string{"v1", "users"}},
	{prefix: []string{"v1", "clients"}, sub: map[string]bool{"mailbox": true, "accounting": true}},
	{prefix: []string{"v1", "queue", "tasks"}},
	{prefix: []string{"v1", "invoices"}, sub: map[string]bool{"items": true, "review": true}},
}

func matchesPrefix(segments, prefix []string) bool {
	// segments[0] is empty for a leading slash.
	if len(segments) < len(prefix)+1 {
		return false
	}
	for i, p := range prefix {
		if segments[i+1] != p {
			return false
		}
	}
	return true
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
