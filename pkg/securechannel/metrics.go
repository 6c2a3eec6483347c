package securechannel

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional prometheus sink for per-process secure channel
// counters, per SPEC_FULL.md §2.2. A nil *Metrics is safe to use: every
// method is a no-op guard.
type Metrics struct {
	chunksSent       prometheus.Counter
	chunksReceived   prometheus.Counter
	renewals         *prometheus.CounterVec
	errorsByKind     *prometheus.CounterVec
}

// NewMetrics registers the secure channel's counters on reg and returns
// the handle to pass via Config.Metrics. Pass a nil reg to get metrics
// that are tracked in-process but never exposed (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opcua_sc",
			Name:      "chunks_sent_total",
			Help:      "Number of chunks sent on secure channels.",
		}),
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opcua_sc",
			Name:      "chunks_received_total",
			Help:      "Number of chunks received on secure channels.",
		}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcua_sc",
			Name:      "token_renewals_total",
			Help:      "Number of security token renewals, by outcome.",
		}, []string{"outcome"}),
		errorsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcua_sc",
			Name:      "errors_total",
			Help:      "Number of secure channel errors, by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.chunksSent, m.chunksReceived, m.renewals, m.errorsByKind)
	}
	return m
}

func (m *Metrics) incChunksSent() {
	if m == nil {
		return
	}
	m.chunksSent.Inc()
}

func (m *Metrics) incChunksReceived() {
	if m == nil {
		return
	}
	m.chunksReceived.Inc()
}

func (m *Metrics) incRenewal(outcome string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incError(kind string) {
	if m == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}
