package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRead(10)
	m.ObserveRead(5)
	m.ObserveWrite(WriteOK, 8)
	m.ObserveWrite(WriteFailed, 0)
	m.ObserveToken("text")
	m.ObserveClear()
	m.SessionStarted()

	if got := testutil.ToFloat64(m.ChunksRead); got != 2 {
		t.Errorf("ChunksRead = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BytesRead); got != 15 {
		t.Errorf("BytesRead = %v, want 15", got)
	}
	if got := testutil.ToFloat64(m.WritesTotal.WithLabelValues(WriteFailed)); got != 1 {
		t.Errorf("failed writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesWritten); got != 8 {
		t.Errorf("BytesWritten = %v, want 8", got)
	}
	if got := testutil.ToFloat64(m.Clears); got != 1 {
		t.Errorf("Clears = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Sessions); got != 1 {
		t.Errorf("Sessions = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRead(1)
	m.ObserveWrite(WriteOK, 1)
	m.ObserveToken("control")
	m.ObserveClear()
	m.SessionStarted()
	m.SessionStopped()
}
