package queue

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	enqueued        *prometheus.CounterVec
	completed       *prometheus.CounterVec
	failed          *prometheus.CounterVec
	retries         *prometheus.CounterVec
	inFlight        prometheus.Gauge
	persistFailures prometheus.Counter
}

func newMetrics(registry prometheus.Registerer) *metrics {
	if registry == nil {
		return nil
	}

	m := &metrics{
		enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicelog_queue_tasks_enqueued_total",
				Help: "Total number of background tasks enqueued by kind",
			},
			[]string{"kind"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicelog_queue_tasks_completed_total",
				Help: "Total number of background tasks completed by kind",
			},
			[]string{"kind"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicelog_queue_tasks_failed_total",
				Help: "Total number of background tasks that failed permanently by kind",
			},
			[]string{"kind"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicelog_queue_task_retries_total",
				Help: "Total number of retry attempts scheduled by kind",
			},
			[]string{"kind"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "voicelog_queue_tasks_in_flight",
				Help: "Number of task attempts currently running",
			},
		),
		persistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "voicelog_queue_persist_failures_total",
				Help: "Total number of failed queue snapshot writes",
			},
		),
	}

	registry.MustRegister(
		m.enqueued,
		m.completed,
		m.failed,
		m.retries,
		m.inFlight,
		m.persistFailures,
	)
	return m
}

func (m *metrics) incEnqueued(kind string) {
	if m != nil {
		m.enqueued.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) incCompleted(kind string) {
	if m != nil {
		m.completed.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) incFailed(kind string) {
	if m != nil {
		m.failed.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) incRetries(kind string) {
	if m != nil {
		m.retries.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) addInFlight(delta float64) {
	if m != nil {
		m.inFlight.Add(delta)
	}
}

func (m *metrics) incPersistFailures() {
	if m != nil {
		m.persistFailures.Inc()
	}
}
