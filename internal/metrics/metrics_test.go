package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordHTTPRequest(http.MethodGet, "/shares/{id}", 404, 5*time.Millisecond)
	m.RecordCleanupRun(0.2, 3, 1)
	m.RecordUsageEvent("pdf", true)
	m.SharesCreated.WithLabelValues("file").Inc()

	assert.Equal(t, 1.0, counterValue(t, m, "flexconvert_http_requests_total"))
	assert.Equal(t, 3.0, counterValue(t, m, "flexconvert_cleanup_deleted_total"))
	assert.Equal(t, 1.0, counterValue(t, m, "flexconvert_cleanup_errors_total"))
	assert.Equal(t, 1.0, counterValue(t, m, "flexconvert_analytics_usage_events_total"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flexconvert_shares_created_total")
}
