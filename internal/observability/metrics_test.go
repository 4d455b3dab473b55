package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndExpose(t *testing.T) {
	m := NewMetrics("")

	m.RecordSubmission(OutcomeVerified)
	m.RecordSubmission(OutcomeVerified)
	m.RecordSubmission(OutcomeInvalid)
	m.RecordTradeOpened("demo")
	m.SetPrices(0.0012, 0.9998)
	m.SetLedgerSize(3)
	m.RecordPipeline(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(OutcomeVerified)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesOpened.WithLabelValues("demo")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LedgerSize))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sentinel_tips_submissions_total{outcome="verified"} 2`)
	assert.Contains(t, string(body), "sentinel_market_volatile_price_usd 0.0012")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")
	a.RecordTradeSettled()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.TradesSettled))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TradesSettled))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSubmission(OutcomeFailed)
		m.RecordPipeline(time.Second)
		m.RecordHTTP("/x", "200", time.Millisecond)
		m.StreamOpened()
		m.StreamClosed()
		m.SetPrices(1, 1)
	})
	assert.Nil(t, m.Registry())
}
