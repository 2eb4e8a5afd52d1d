package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the domain counters for replace outcomes. A nil *Metrics records nothing.
type Metrics struct {
	replacements *prometheus.CounterVec
	documentSize prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		replacements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfslot_replacements_total",
				Help: "Document replace attempts partitioned by result.",
			},
			[]string{"result"},
		),
		documentSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pdfslot_document_size_bytes",
			Help: "Size of the currently stored document in bytes.",
		}),
	}
	reg.MustRegister(m.replacements, m.documentSize)
	return m
}

func (m *Metrics) replaced(size int64) {
	if m == nil {
		return
	}
	m.replacements.WithLabelValues("success").Inc()
	m.documentSize.Set(float64(size))
}

func (m *Metrics) failed(result string) {
	if m == nil {
		return
	}
	m.replacements.WithLabelValues(result).Inc()
}
