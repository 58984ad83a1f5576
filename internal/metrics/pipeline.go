package metrics

import "github.com/prometheus/client_golang/prometheus"

// Intake pipeline Prometheus metrics.
var (
	IntakeSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civiciq",
			Name:      "intake_submissions_total",
			Help:      "Total submissions by terminal outcome",
		},
		[]string{"outcome"}, // accepted, duplicate, rate_limited, aborted
	)

	IntakeStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "civiciq",
			Name:      "intake_stage_duration_seconds",
			Help:      "Intake pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "civiciq",
			Name:      "rate_limit_rejections_total",
			Help:      "Total submissions rejected by admission control",
		},
	)

	DuplicatesDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "civiciq",
			Name:      "duplicates_detected_total",
			Help:      "Total complaints flagged as duplicates of an original",
		},
	)

	RescoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civiciq",
			Name:      "rescores_total",
			Help:      "Total priority rescores by trigger",
		},
		[]string{"trigger"}, // vote, duplicate, periodic
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civiciq",
			Name:      "ai_requests_total",
			Help:      "Total AI provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "civiciq",
			Name:      "ai_request_duration_seconds",
			Help:      "AI provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	AITokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civiciq",
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"provider", "operation", "type"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline Prometheus metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IntakeSubmissionsTotal)
	prometheus.MustRegister(IntakeStageDuration)
	prometheus.MustRegister(RateLimitRejectionsTotal)
	prometheus.MustRegister(DuplicatesDetectedTotal)
	prometheus.MustRegister(RescoresTotal)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AITokensTotal)
	pipelineMetricsRegistered = true
}
