package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberwill_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cyberwill_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberwill_provider_calls_total",
			Help: "Upstream provider calls by mode and outcome",
		},
		[]string{"provider", "mode", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cyberwill_provider_latency_seconds",
			Help: "Upstream provider latency in seconds (full stream for streaming calls)",
		},
		[]string{"provider", "mode"},
	)

	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberwill_stream_events_total",
			Help: "Normalized stream events written to clients",
		},
		[]string{"type"},
	)

	UnknownArchetypes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cyberwill_unknown_archetypes_total",
			Help: "Analyses whose archetype label is outside the fixed catalogue",
		},
	)

	AnalysisCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberwill_analysis_cache_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)
)

const (
	OutcomeOK             = "ok"
	OutcomeProviderError  = "provider_error"
	OutcomeTransportError = "transport_error"
)
