package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics("test")

	m.RecordSwap("jupiter", nil)
	m.RecordSwap("jupiter", errors.New("boom"))
	m.RecordSwap("raydium", nil)
	m.RecordTransfer("sol", nil)
	m.RecordDeposit(1_500)
	m.RecordDeposit(500)
	m.RecordHTTP("/wallet/send", http.MethodPost, 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Swaps.WithLabelValues("jupiter", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Swaps.WithLabelValues("jupiter", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transfers.WithLabelValues("sol", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DepositsSeen))
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.DepositLamports))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/wallet/send", "POST", "200")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("")
	m.RecordSessionCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "veilfi_session_created_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSwap("jupiter", nil)
		m.RecordDeposit(1)
		m.RecordDepositScan(nil)
		m.RecordHTTP("/", "GET", 200, time.Millisecond)
	})
}
