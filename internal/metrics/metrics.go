package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

/*
Metric types used here:

- CounterVec: a counter with labels, e.g. applied vs. duplicate vote events
  per project, or page loads per outcome.

- HistogramVec: the distribution of a duration, so percentiles are visible
  and not only the average.

Registration:
Every constructor takes the Registerer to register with. Binaries build
their own registry and serve it on /metrics; tests pass a fresh one per case.
*/

type ProcessorMetrics struct {
	EventsApplied   *prometheus.CounterVec
	EventsDuplicate *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec
	ProcessingTime  *prometheus.HistogramVec
}

func NewProcessorMetrics(reg prometheus.Registerer, namespace, subsystem string) *ProcessorMetrics {
	f := promauto.With(reg)
	return &ProcessorMetrics{
		EventsApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "vote_events_applied_total",
				Help:      "Total number of vote events folded into project tallies",
			},
			[]string{"project", "action"},
		),
		EventsDuplicate: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "vote_events_duplicate_total",
				Help:      "Total number of redelivered vote events skipped",
			},
			[]string{"project"},
		),
		EventsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "vote_events_failed_total",
				Help:      "Total number of vote events that could not be applied",
			},
			[]string{"project"},
		),
		ProcessingTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "vote_event_processing_time_seconds",
				Help:      "Histogram of vote event processing times",
				Buckets:   prometheus.LinearBuckets(0.001, 0.001, 10), // 10 buckets, 1ms to 10ms
			},
			[]string{"project"},
		),
	}
}

type LoaderMetrics struct {
	Loads        *prometheus.CounterVec
	LoadDuration prometheus.Histogram
}

func NewLoaderMetrics(reg prometheus.Registerer, namespace string) *LoaderMetrics {
	f := promauto.With(reg)
	return &LoaderMetrics{
		Loads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "page",
				Name:      "loads_total",
				Help:      "Total number of voting page loads by outcome",
			},
			[]string{"outcome"},
		),
		LoadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "page",
				Name:      "load_duration_seconds",
				Help:      "Time spent fetching and parsing the vote list",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

type APIMetrics struct {
	VoteMutations *prometheus.CounterVec
	PublishErrors prometheus.Counter
}

func NewAPIMetrics(reg prometheus.Registerer, namespace string) *APIMetrics {
	f := promauto.With(reg)
	return &APIMetrics{
		VoteMutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "vote_mutations_total",
				Help:      "Total number of committed vote changes by action",
			},
			[]string{"action"},
		),
		PublishErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "vote_event_publish_errors_total",
				Help:      "Total number of vote events that failed to publish",
			},
		),
	}
}
