package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Match outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeValidation     = "validation_error"
	OutcomeAuthentication = "authentication_error"
	OutcomeNetwork        = "network_error"
	OutcomeService        = "service_error"
	OutcomeInternal       = "internal_error"
)

var (
	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Total number of match submissions by outcome",
		},
		[]string{"outcome"},
	)

	MatchRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_request_duration_seconds",
			Help:    "Duration of calls to the matching service in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_results_returned",
			Help:    "Number of results kept per successful match",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	MatchResultsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_results_dropped_total",
			Help: "Result items discarded while decoding a match response",
		},
		[]string{"reason"},
	)

	OpportunityCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opportunity_cache_lookups_total",
			Help: "Opportunity candidate cache lookups by result",
		},
		[]string{"result"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_notifications_sent_total",
			Help: "Match digest notifications by channel and status",
		},
		[]string{"channel", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
