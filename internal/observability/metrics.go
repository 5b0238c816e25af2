package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpawx",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpawx",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	controllerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpawx",
			Subsystem: "controller",
			Name:      "requests_total",
			Help:      "Requests issued to the automation controller.",
		},
		[]string{"endpoint", "method", "status"},
	)
	controllerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpawx",
			Subsystem: "controller",
			Name:      "request_duration_seconds",
			Help:      "Automation controller request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpawx",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool invocations by outcome.",
		},
		[]string{"tool", "outcome"},
	)
	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpawx",
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Tool invocation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"tool", "outcome"},
	)
	jobResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpawx",
			Subsystem: "jobs",
			Name:      "results_total",
			Help:      "Launched jobs by final observed status.",
		},
		[]string{"status", "timed_out"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			controllerRequests, controllerDuration,
			toolCalls, toolDuration,
			jobResults,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordControllerRequest counts one controller round trip. status 0 means no response was received.
func RecordControllerRequest(endpoint, method string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	controllerRequests.WithLabelValues(endpoint, method, statusLabel).Inc()
	controllerDuration.WithLabelValues(endpoint, method, statusLabel).Observe(duration.Seconds())
}

func RecordToolCall(tool, outcome string, duration time.Duration) {
	RegisterMetrics()
	toolCalls.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool, outcome).Observe(duration.Seconds())
}

func RecordJobResult(status string, timedOut bool) {
	RegisterMetrics()
	if status == "" {
		status = "unknown"
	}
	jobResults.WithLabelValues(status, strconv.FormatBool(timedOut)).Inc()
}
