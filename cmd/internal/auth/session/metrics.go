package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts authentication outcomes. A nil *Metrics records nothing.
type Metrics struct {
	loginsTotal   *prometheus.CounterVec
	refreshTotal  *prometheus.CounterVec
	sessionsTotal prometheus.Counter
}

// NewMetrics registers the auth collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Refresh rotations by result (ok, invalid, reuse, error).",
		}, []string{"result"}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "auth",
			Name:      "sessions_created_total",
			Help:      "Refresh sessions created.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loginsTotal, m.refreshTotal, m.sessionsTotal)
	}
	return m
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) sessionCreated() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
}
