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
			Namespace: "agentctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
	agentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentctl",
			Subsystem: "agent",
			Name:      "ops_total",
			Help:      "Agent protocol operations handled.",
		},
		[]string{"op", "outcome"},
	)
	agentOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentctl",
			Subsystem: "agent",
			Name:      "op_duration_seconds",
			Help:      "Agent protocol operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, agentOps, agentOpDuration)
	})
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordAgentOp(op string, success bool, duration time.Duration) {
	RegisterMetrics()
	outcome := "failure"
	if success {
		outcome = "ok"
	}
	agentOps.WithLabelValues(op, outcome).Inc()
	agentOpDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}
