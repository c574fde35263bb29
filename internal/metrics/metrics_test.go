package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProbe(t *testing.T) {
	m := New()

	m.RecordProbe("tcp_connect", "open", 50*time.Millisecond)
	m.RecordProbe("tcp_connect", "open", 10*time.Millisecond)
	m.RecordProbe("tcp_connect", "timeout", time.Second)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.probesTotal.WithLabelValues("tcp_connect", "open")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.probesTotal.WithLabelValues("tcp_connect", "timeout")))
}

func TestInFlightGauge(t *testing.T) {
	m := New()

	m.ProbeStarted("ptr")
	m.ProbeStarted("ptr")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.probesInFlight.WithLabelValues("ptr")))

	m.ProbeFinished("ptr")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.probesInFlight.WithLabelValues("ptr")))
}

func TestRecordScanAndHarvest(t *testing.T) {
	m := New()

	m.RecordScan("portscan", "success", 100, 2*time.Second)
	m.RecordHarvest("crt.sh", "success", 42)
	m.RecordHarvest("crt.sh", "unavailable", 0)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.scansTotal.WithLabelValues("portscan", "success")))
	assert.Equal(t, float64(42),
		testutil.ToFloat64(m.harvestNames.WithLabelValues("crt.sh")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.harvestTotal.WithLabelValues("crt.sh", "unavailable")))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.RecordProbe("tcp_connect", "open", time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "osprey_probe_total")
}

func TestGlobalIsSingleton(t *testing.T) {
	assert.Same(t, Global(), Global())
}
