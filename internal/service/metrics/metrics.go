package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onevoice"

// Metrics holds the Prometheus collectors of the IVR service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CallsStarted     *prometheus.CounterVec
	MenuSelections   *prometheus.CounterVec
	Turns            *prometheus.CounterVec
	UrgentTurns      prometheus.Counter
	Goodbyes         prometheus.Counter
	BackendLatency   prometheus.Histogram
	BackendFailures  prometheus.Counter
	Outcomes         *prometheus.CounterVec
	CallsEnded       *prometheus.CounterVec
	SessionsSwept    prometheus.Counter
	AnalyticsDropped prometheus.Counter
	MonitorClients   prometheus.Gauge
}

// New registers every collector on a fresh registry. activeSessions feeds the live session gauge.
func New(activeSessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		CallsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Calls that reached the menu greeting",
		}, []string{"restart"}),

		MenuSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_selections_total",
			Help:      "Menu outcomes by resulting mode or invalid input",
		}, []string{"choice"}),

		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversational turns by mode",
		}, []string{"mode"}),

		UrgentTurns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urgent_turns_total",
			Help:      "Caller utterances that matched an urgency cue",
		}),

		Goodbyes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goodbyes_total",
			Help:      "Calls closed by a goodbye phrase",
		}),

		BackendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_duration_seconds",
			Help:      "Language backend latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 7.5, 10},
		}),

		BackendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Language backend errors and timeouts",
		}),

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Recorded outcomes by category",
		}, []string{"outcome"}),

		CallsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Finalized calls by status",
		}, []string{"status"}),

		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Sessions evicted by the TTL sweep",
		}),

		AnalyticsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_dropped_total",
			Help:      "Analytics events dropped on a full queue",
		}),

		MonitorClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_clients",
			Help:      "Connected live monitor clients",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Live call sessions",
	}, func() float64 {
		if activeSessions == nil {
			return 0
		}
		return float64(activeSessions())
	})

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordCallStart(restart bool) {
	if m == nil {
		return
	}
	label := "false"
	if restart {
		label = "true"
	}
	m.CallsStarted.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordMenuChoice(choice string) {
	if m == nil {
		return
	}
	m.MenuSelections.WithLabelValues(choice).Inc()
}

func (m *Metrics) RecordTurn(mode string, urgent bool) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(mode).Inc()
	if urgent {
		m.UrgentTurns.Inc()
	}
}

func (m *Metrics) RecordGoodbye() {
	if m == nil {
		return
	}
	m.Goodbyes.Inc()
}

func (m *Metrics) RecordBackend(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.BackendLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.BackendFailures.Inc()
	}
}

func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCallEnd(status string) {
	if m == nil {
		return
	}
	m.CallsEnded.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordSweep(evicted int) {
	if m == nil || evicted <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(evicted))
}

func (m *Metrics) RecordAnalyticsDrop() {
	if m == nil {
		return
	}
	m.AnalyticsDropped.Inc()
}

func (m *Metrics) MonitorConnected() {
	if m == nil {
		return
	}
	m.MonitorClients.Inc()
}

func (m *Metrics) MonitorDisconnected() {
	if m == nil {
		return
	}
	m.MonitorClients.Dec()
}
