package webutil

import (
	"net/http"
	"strings"
	"time"

	"github.com/nlawson/birdtag/internal/metrics"
)

// WithPreflight short-circuits CORS preflight requests before they reach
// route handlers.
func WithPreflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORS(w)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// WithMetrics emits per-request EMF metrics: RequestLatencyMs and
// RequestCount, dimensioned by normalized endpoint.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		metrics.New().
			Dimension("Endpoint", NormalizeEndpoint(r.URL.Path)).
			DurationMs("RequestLatencyMs", time.Since(start)).
			Count("RequestCount").
			Property("method", r.Method).
			Property("statusCode", sr.statusCode).
			Property("path", r.URL.Path).
			Flush()
	})
}

// NormalizeEndpoint collapses path parameters (job IDs, species names) so
// the Endpoint dimension stays low-cardinality in CloudWatch.
func NormalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		// Anything after a known parameterized segment is a path param.
		if i > 0 && (parts[i-1] == "status" || parts[i-1] == "species") {
			out = append(out, "*")
			continue
		}
		if looksLikeID(p) {
			out = append(out, "*")
			continue
		}
		out = append(out, p)
	}
	return "/" + strings.Join(out, "/")
}

// looksLikeID reports whether a path segment resembles a random ID
// (UUID or long hex string).
func looksLikeID(s string) bool {
	if len(s) < 8 {
		return false
	}
	hexCount := 0
	for _, c := range s {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || c == '-' {
			hexCount++
		}
	}
	return float64(hexCount)/float64(len(s)) > 0.8
}
