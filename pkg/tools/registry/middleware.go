package registry

import (
	"net/http"
	"strconv"

	"github.com/crowdit/crowdmcp/pkg/observability"
)

// wrapRoute records request counts per provider/method/path.
func wrapRoute(providerName string, route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		route.Handler.ServeHTTP(sw, r)
		observability.ProviderRouteRequestsTotal.WithLabelValues(providerName, r.Method, route.Pattern, strconv.Itoa(sw.status)).Inc()
	}
}

// statusCapture wraps http.ResponseWriter to capture the status code.
type statusCapture struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusCapture) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapture) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter.
func (w *statusCapture) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
