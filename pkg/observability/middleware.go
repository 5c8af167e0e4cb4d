package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// knownRoutes bounds the cardinality of the route label.
var knownRoutes = []string{"/mcp", "/health", "/status", "/tools", "/callback", "/sharepoint-callback", "/metrics"}

// RouteLabel maps a request path to a bounded route label.
func RouteLabel(path string) string {
	if path == "/" {
		return "/"
	}
	for _, r := range knownRoutes {
		if path == r || strings.HasPrefix(path, r+"/") {
			return r
		}
	}
	return "other"
}

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - crowdmcp_requests_total (counter): method, status class and route labels
//   - crowdmcp_request_duration_seconds (histogram): method and route labels
//   - crowdmcp_streaming_connections_active (gauge): in-flight SSE streams
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := RouteLabel(r.URL.Path)

		// MCP clients open a long-lived GET stream with this Accept header.
		if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			StreamingConnections.Inc()
			defer StreamingConnections.Dec()
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		statusStr := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, statusStr, route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// The streamable MCP transport depends on it.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
