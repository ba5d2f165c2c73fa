package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks connection counts and fan-out outcomes. A nil *Metrics records nothing.
type Metrics struct {
	active     prometheus.Gauge
	broadcasts prometheus.Counter
	deliveries *prometheus.CounterVec
}

// NewMetrics registers the realtime collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskhub",
			Subsystem: "ws",
			Name:      "connections_active",
			Help:      "Open notification connections.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "ws",
			Name:      "broadcasts_total",
			Help:      "Broadcast calls.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskhub",
			Subsystem: "ws",
			Name:      "deliveries_total",
			Help:      "Per-connection sends by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.broadcasts, m.deliveries)
	}
	return m
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *Metrics) broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}
