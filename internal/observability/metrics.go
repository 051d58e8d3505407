package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxsql_requests_total",
		Help: "The total number of finished requests by outcome",
	}, []string{"outcome"})

	MessagesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxsql_messages_deduplicated_total",
		Help: "The total number of inbound messages suppressed as duplicates",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voxsql_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	TranscriptionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxsql_transcriptions_in_flight",
		Help: "Number of external transcriber invocations currently running",
	})

	TranscriptionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxsql_transcription_cache_hits_total",
		Help: "The total number of transcription cache hits",
	})

	ActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxsql_active_requests",
		Help: "Number of request records currently in the active set",
	})

	StaleRequestsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxsql_stale_requests_swept_total",
		Help: "The total number of stale request records removed by the sweeper",
	})
)

// Outcome label values for RequestsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)
