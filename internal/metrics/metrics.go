// Package metrics holds the Prometheus collectors of the notification engine.
//
// Collectors are package-level and registered with the default registry in
// init, so any component can record without plumbing a registry through.
// Label sets are small closed vocabularies:
//
//   - cache:   logical cache name (schedule, exams, groups)
//   - result:  hit, miss, shared
//   - kind:    lessons, exams, grades
//   - outcome: sent, skipped, duplicate, failed, unreachable, ok, error
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notifier"

var (
	// UpstreamRequests counts timetable API calls by endpoint and status class.
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Timetable API requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	// UpstreamRetries counts rate-limit retries.
	UpstreamRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Timetable API retries after a rate-limited response.",
		},
		[]string{"endpoint"},
	)

	// UpstreamInflight gauges fetches currently holding a concurrency slot.
	UpstreamInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_inflight",
			Help:      "Upstream fetches currently holding a concurrency slot.",
		},
	)

	// CacheLookups counts cache lookups by cache and result.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Single-flight cache lookups by result.",
		},
		[]string{"cache", "result"},
	)

	// DispatchTicks counts dispatcher ticks by kind and outcome.
	DispatchTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_ticks_total",
			Help:      "Dispatcher ticks by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// DispatchDuration records tick wall time.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_tick_duration_seconds",
			Help:      "Duration of dispatcher ticks in seconds.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// Notifications counts per-candidate delivery outcomes.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification candidates by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// PoolKeys gauges credential pool membership by state (total, active, limited).
	PoolKeys = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credential_pool_keys",
			Help:      "Credential pool keys by state.",
		},
		[]string{"state"},
	)

	// InferenceRequests counts inference calls by operation and outcome.
	InferenceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Inference API calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// JobRuns counts scheduler job executions.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	// BuildInfo is always 1; the version label identifies the running binary.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information of the running notifier.",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(
		UpstreamRequests,
		UpstreamRetries,
		UpstreamInflight,
		CacheLookups,
		DispatchTicks,
		DispatchDuration,
		Notifications,
		PoolKeys,
		InferenceRequests,
		JobRuns,
		BuildInfo,
	)
}
