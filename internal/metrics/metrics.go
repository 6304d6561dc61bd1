package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyjudge_evaluations_total",
			Help: "Total number of submission evaluations",
		},
		[]string{"outcome"}, // passed, failed, validation_error, build_error, run_error, internal_error
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pyjudge_phase_duration_ms",
			Help:    "Evaluation phase duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"phase"}, // phase: "build", "run", "total"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pyjudge_queue_depth",
			Help: "Current number of submissions waiting for a worker",
		},
	)

	QueueRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyjudge_queue_rejections_total",
			Help: "Submissions refused at admission",
		},
		[]string{"reason"}, // full, in_flight, closed
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pyjudge_active_workers",
			Help: "Number of workers currently evaluating a submission",
		},
	)

	MemoryUsage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pyjudge_memory_usage_mib",
			Help:    "Peak sandbox memory per evaluation in MiB",
			Buckets: []float64{8, 16, 32, 64, 128, 256, 512, 1024, 2048},
		},
	)

	ContainerStartTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pyjudge_container_start_ms",
			Help:    "Time to create and start a container",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000},
		},
	)

	ReclaimFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyjudge_reclaim_failures_total",
			Help: "Sandbox resources that could not be removed",
		},
		[]string{"resource"}, // container, image, scratch_dir
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pyjudge_rate_limit_hits_total",
			Help: "Total number of evaluation requests rejected by rate limiter",
		},
	)
)
