// Package metrics exposes Prometheus instrumentation for terminal sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write outcomes used as the "result" label of WritesTotal.
const (
	WriteOK     = "ok"
	WriteFailed = "failed"
	WriteShort  = "short"
)

// Metrics holds the collectors updated by the session I/O loops and the
// terminal consumer. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChunksRead   prometheus.Counter
	BytesRead    prometheus.Counter
	WritesTotal  *prometheus.CounterVec
	BytesWritten prometheus.Counter
	Tokens       *prometheus.CounterVec
	Clears       prometheus.Counter
	Sessions     prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksRead: f.NewCounter(prometheus.CounterOpts{
			Name: "termcore_pty_chunks_read_total",
			Help: "Number of non-empty reads from the PTY master",
		}),
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "termcore_pty_read_bytes_total",
			Help: "Bytes read from the PTY master",
		}),
		WritesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "termcore_pty_writes_total",
			Help: "Outbound payload writes by result",
		}, []string{"result"}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "termcore_pty_written_bytes_total",
			Help: "Bytes written to the PTY master",
		}),
		Tokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "termcore_tokens_total",
			Help: "Tokens delivered to the scrollback by kind",
		}, []string{"kind"}),
		Clears: f.NewCounter(prometheus.CounterOpts{
			Name: "termcore_scrollback_clears_total",
			Help: "Clear-screen signals applied to the scrollback",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "termcore_sessions_active",
			Help: "Sessions whose I/O loops are running",
		}),
	}
}

func (m *Metrics) ObserveRead(n int) {
	if m == nil {
		return
	}
	m.ChunksRead.Inc()
	m.BytesRead.Add(float64(n))
}

func (m *Metrics) ObserveWrite(result string, n int) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(result).Inc()
	if n > 0 {
		m.BytesWritten.Add(float64(n))
	}
}

func (m *Metrics) ObserveToken(kind string) {
	if m == nil {
		return
	}
	m.Tokens.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveClear() {
	if m == nil {
		return
	}
	m.Clears.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.Sessions.Dec()
}
