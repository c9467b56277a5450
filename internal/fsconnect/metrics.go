// internal/fsconnect/metrics.go
package fsconnect

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the session's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Connected        prometheus.Gauge
	MessagesReceived *prometheus.CounterVec
	RequestsSent     *prometheus.CounterVec
	Exceptions       *prometheus.CounterVec
	Waits            *prometheus.CounterVec
	ReceiveErrors    prometheus.Counter
	HandlerPanics    *prometheus.CounterVec
	RoundTrip        prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const ns = "fsbridge"

	m := &Metrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "session", Name: "connected",
			Help: "1 while the host has acknowledged the connection.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "session", Name: "messages_received_total",
			Help: "Host messages dispatched, by kind.",
		}, []string{"kind"}),
		RequestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "session", Name: "requests_sent_total",
			Help: "Host calls issued, by call and status.",
		}, []string{"request", "status"}),
		Exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "session", Name: "exceptions_total",
			Help: "Host exceptions received, by exception.",
		}, []string{"exception"}),
		Waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "session", Name: "request_waits_total",
			Help: "Completed RequestAndWait calls, by outcome.",
		}, []string{"outcome"}),
		ReceiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "session", Name: "receive_errors_total",
			Help: "Transport reads that failed and were skipped.",
		}),
		HandlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "session", Name: "handler_panics_total",
			Help: "Subscriber handlers that panicked, by event.",
		}, []string{"event"}),
		RoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "session", Name: "request_round_trip_seconds",
			Help:    "Time from request to matching record.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Connected,
			m.MessagesReceived,
			m.RequestsSent,
			m.Exceptions,
			m.Waits,
			m.ReceiveErrors,
			m.HandlerPanics,
			m.RoundTrip,
		)
	}
	return m
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

func (m *Metrics) received(kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) sent(request string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestsSent.WithLabelValues(request, status).Inc()
}

func (m *Metrics) exception(code ExceptionCode) {
	if m == nil {
		return
	}
	m.Exceptions.WithLabelValues(code.String()).Inc()
}

func (m *Metrics) waitOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Waits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) receiveError() {
	if m == nil {
		return
	}
	m.ReceiveErrors.Inc()
}

func (m *Metrics) handlerPanic(event string) {
	if m == nil {
		return
	}
	m.HandlerPanics.WithLabelValues(event).Inc()
}

func (m *Metrics) roundTrip(d time.Duration) {
	if m == nil {
		return
	}
	m.RoundTrip.Observe(d.Seconds())
}
