// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

// Diagnosis pipeline metrics.
var (
	DiagnosesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnosis_requests_total",
			Help: "Diagnoses produced, by confidence reason",
		},
		[]string{"reason"},
	)

	DiagnosisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagnosis_duration_seconds",
			Help:    "Time spent scoring, ranking and explaining one report",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	UnrecognizedSymptoms = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diagnosis_unrecognized_symptoms_total",
			Help: "Reported phrases that matched no catalog symptom",
		},
	)

	KnowledgeBaseConditions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "knowledge_base_conditions",
			Help: "Number of conditions loaded into the engine",
		},
	)

	EscalationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_sent_total",
			Help: "Escalation notifications delivered, by channel",
		},
		[]string{"channel"},
	)

	ClarificationSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarification_sessions_total",
			Help: "Clarification sessions by event (opened, answered)",
		},
		[]string{"event"},
	)
)

// HTTP API metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route pattern",
		},
		[]string{"method", "route"},
	)
)
