package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval, model and workflow Prometheus metrics.
var (
	AdapterRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_adapter_requests_total",
			Help:      "Index adapter calls by family, adapter and outcome",
		},
		[]string{"family", "adapter", "status"}, // status: results / empty / error
	)

	AdapterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_adapter_duration_seconds",
			Help:      "Index adapter latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"family", "adapter"},
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_total",
			Help:      "Rerank attempts by outcome",
		},
		[]string{"result"}, // applied / fallback / skipped
	)

	RetrievalOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_outcomes_total",
			Help:      "Retrieval agent outcomes",
		},
		[]string{"status"},
	)

	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Resolution model calls",
		},
		[]string{"provider", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Resolution model latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"provider", "model"},
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "End-to-end analyze workflow duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"mode", "result"},
	)

	ProposalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_transitions_total",
			Help:      "Proposal lifecycle transitions",
		},
		[]string{"action", "result"}, // result: ok / conflict / invalid
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers retrieval, model and workflow metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(AdapterRequestsTotal)
	prometheus.MustRegister(AdapterDuration)
	prometheus.MustRegister(RerankTotal)
	prometheus.MustRegister(RetrievalOutcomesTotal)
	prometheus.MustRegister(ModelRequestsTotal)
	prometheus.MustRegister(ModelRequestDuration)
	prometheus.MustRegister(WorkflowDuration)
	prometheus.MustRegister(ProposalTransitionsTotal)
	pipelineMetricsRegistered = true
}
