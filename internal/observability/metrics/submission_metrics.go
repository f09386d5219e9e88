package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SubmissionMetrics tracks outbound authority calls and the retry queue.
type SubmissionMetrics struct {
	requestDuration *prometheus.HistogramVec
	transportErrors *prometheus.CounterVec
	enqueued        *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	exhausted       *prometheus.CounterVec
}

var (
	submissionMetricsOnce sync.Once
	submissionMetrics     *SubmissionMetrics
)

// Submission returns the singleton submission metrics registry.
func Submission() *SubmissionMetrics {
	return SubmissionWithConfig(Config{})
}

func SubmissionWithConfig(cfg Config) *SubmissionMetrics {
	submissionMetricsOnce.Do(func() {
		submissionMetrics = newSubmissionMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return submissionMetrics
}

func newSubmissionMetrics(registerer prometheus.Registerer, cfg Config) *SubmissionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "smartinvoice_authority_request_duration_seconds",
		Help:        "Latency of calls to the tax authority API.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"endpoint", "status_code"})
	transportErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "smartinvoice_authority_transport_errors_total",
		Help:        "Calls to the tax authority API that failed before a response arrived.",
		ConstLabels: constLabels,
	}, []string{"endpoint"})
	enqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "smartinvoice_queue_enqueued_total",
		Help:        "Submissions handed to the retry queue.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "smartinvoice_queue_attempts_total",
		Help:        "Queued submission attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})
	exhausted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "smartinvoice_queue_exhausted_total",
		Help:        "Queued submissions that ran out of attempts.",
		ConstLabels: constLabels,
	}, []string{"kind"})

	registerer.MustRegister(requestDuration, transportErrors, enqueued, attempts, exhausted)

	return &SubmissionMetrics{
		requestDuration: requestDuration,
		transportErrors: transportErrors,
		enqueued:        enqueued,
		attempts:        attempts,
		exhausted:       exhausted,
	}
}

// ObserveRequest records a call that produced an HTTP status.
func (m *SubmissionMetrics) ObserveRequest(endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(endpoint), strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

func (m *SubmissionMetrics) IncTransportError(endpoint string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(normalizeLabel(endpoint)).Inc()
}

func (m *SubmissionMetrics) IncEnqueued(kind string) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *SubmissionMetrics) IncAttempt(kind, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *SubmissionMetrics) IncExhausted(kind string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(normalizeLabel(kind)).Inc()
}
