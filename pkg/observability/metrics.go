// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the crowdmcp server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// VendorBuckets covers SaaS API latencies from 50ms to 60s.
var VendorBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// RequestsTotal counts inbound HTTP requests by method, status class and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records inbound request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdmcp_request_duration_seconds",
			Help:    "Request duration",
			Buckets: VendorBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks in-flight SSE streams on the MCP endpoint.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdmcp_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// VendorRequestsTotal counts outbound vendor API requests.
	VendorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_vendor_requests_total",
			Help: "Vendor API requests",
		},
		[]string{"vendor", "method", "status"},
	)

	// VendorLatency records vendor API latency in seconds.
	VendorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdmcp_vendor_latency_seconds",
			Help:    "Vendor API latency",
			Buckets: VendorBuckets,
		},
		[]string{"vendor"},
	)

	// VendorRetriesTotal counts 429 retries per vendor.
	VendorRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_vendor_retries_total",
			Help: "Vendor API rate-limit retries",
		},
		[]string{"vendor"},
	)

	// ToolExecutionsTotal counts tool executions by provider, tool and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"provider", "tool", "status"},
	)

	// ToolDuration records tool execution time in seconds.
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdmcp_tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: VendorBuckets,
		},
		[]string{"provider", "tool"},
	)

	// ProviderRouteRequestsTotal counts requests to provider HTTP routes
	// such as OAuth callbacks.
	ProviderRouteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_provider_route_requests_total",
			Help: "Provider HTTP route requests",
		},
		[]string{"provider", "method", "path", "status"},
	)

	// SecretLookupsTotal counts secret resolutions by source and result.
	SecretLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_secret_lookups_total",
			Help: "Secret lookups",
		},
		[]string{"source", "result"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdmcp_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"identity"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		VendorRequestsTotal,
		VendorLatency,
		VendorRetriesTotal,
		ToolExecutionsTotal,
		ToolDuration,
		ProviderRouteRequestsTotal,
		SecretLookupsTotal,
		RateLimitRejectedTotal,
	)
}
