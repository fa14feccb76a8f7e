package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverc_uploads_total",
			Help: "Total number of accepted or rejected uploads",
		},
		[]string{"class", "result"}, // result: "queued", "rejected"
	)

	PipelineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverc_pipeline_outcomes_total",
			Help: "Terminal pipeline results per retention class",
		},
		[]string{"class", "outcome"}, // outcome: "success", "failed_compiling", "failed_testing", "aborted"
	)

	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reverc_compile_duration_ms",
			Help:    "Compiler wall clock time in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reverc_invocation_duration_us",
			Help:    "Native makeMove call duration in microseconds",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 500000, 1000000, 3000000},
		},
		[]string{"phase"}, // phase: "sandbox", "live"
	)

	InvocationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverc_invocation_outcomes_total",
			Help: "Bounded invocation results",
		},
		[]string{"phase", "outcome"}, // outcome: "completed", "timed_out", "faulted"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reverc_queue_depth",
			Help: "Current number of jobs waiting in the pipeline queue",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reverc_active_workers",
			Help: "Number of workers currently processing jobs",
		},
	)

	JanitorDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverc_janitor_deletions_total",
			Help: "Files removed by the retention sweep",
		},
		[]string{"class", "kind"},
	)

	OpponentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverc_opponent_fallbacks_total",
			Help: "Language model moves replaced by a random legal move",
		},
		[]string{"provider"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reverc_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)
)
