package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/settings/roles", "GET", 200, 10*time.Millisecond)
	m.RecordUpstream("list_members", "ok")
	m.RecordPoll("conversations", "skipped")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `crm_console_upstream_calls_total{operation="list_members",outcome="ok"} 1`)
	assert.Contains(t, string(body), `crm_console_poll_ticks_total{feed="conversations",result="skipped"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordUpstream("op", "ok")
		m.RecordPoll("feed", "run")
	})
}
