package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Routing
	MetricResolveLatency    = "routing.resolve_latency"
	MetricResolveFailurePct = "routing.resolve_failure_percentage"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricClosuresSubmitted = "business.closures_submitted"
	MetricSessionsOpened    = "business.sessions_opened"
)
