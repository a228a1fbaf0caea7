// Package metrics holds the Prometheus collectors for the account planning
// pipeline. Collectors register with the default registry on import; the
// server exposes them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Research sweep
	ChannelTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_channel_tasks_total",
			Help: "Research tasks executed per channel",
		},
		[]string{"channel", "status"}, // status: complete, error
	)

	ChannelTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountplan_channel_task_duration_seconds",
			Help:    "Duration of a single research task",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	// Synthesis
	SectionGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_section_generations_total",
			Help: "Section synthesis attempts",
		},
		[]string{"section", "status"},
	)

	SectionGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountplan_section_generation_duration_seconds",
			Help:    "Duration of a single section synthesis call",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"section"},
	)

	RegenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_regenerations_total",
			Help: "Section regeneration requests",
		},
		[]string{"status"}, // status: success, error, busy, invalid
	)

	// Sessions
	StageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_stage_transitions_total",
			Help: "Conversation stage transitions",
		},
		[]string{"from", "to"},
	)

	BusyRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountplan_busy_rejections_total",
			Help: "Messages ignored because the session was mid heavy stage",
		},
	)

	PlansCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountplan_plans_completed_total",
			Help: "Account plans assembled from a full set of sections",
		},
	)

	// Models
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_model_calls_total",
			Help: "Language model calls per role",
		},
		[]string{"role", "status"},
	)

	ModelTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_model_tokens_total",
			Help: "Tokens consumed per role",
		},
		[]string{"role", "type"}, // type: prompt, completion
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"route", "status"},
	)
)

// RecordChannelTask records one finished research task.
func RecordChannelTask(channel, status string, d time.Duration) {
	ChannelTasksTotal.WithLabelValues(channel, status).Inc()
	ChannelTaskDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// RecordSection records one section synthesis call.
func RecordSection(section, status string, d time.Duration) {
	SectionGenerationsTotal.WithLabelValues(section, status).Inc()
	SectionGenerationDuration.WithLabelValues(section).Observe(d.Seconds())
}

// RecordModelCall records one model call and its token usage.
func RecordModelCall(role, status string, promptTokens, completionTokens int) {
	ModelCallsTotal.WithLabelValues(role, status).Inc()
	if promptTokens > 0 {
		ModelTokensTotal.WithLabelValues(role, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		ModelTokensTotal.WithLabelValues(role, "completion").Add(float64(completionTokens))
	}
}
