package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEnrichIncrementsByLabel(t *testing.T) {
	before := testutil.ToFloat64(EnrichTotal.WithLabelValues("summary", "done"))
	RecordEnrich("summary", "done")
	RecordEnrich("summary", "done")
	after := testutil.ToFloat64(EnrichTotal.WithLabelValues("summary", "done"))
	assert.Equal(t, before+2, after)
}

func TestRecordRefresh(t *testing.T) {
	before := testutil.ToFloat64(RefreshTotal.WithLabelValues("auto", "error"))
	RecordRefresh("auto", "error", 0.25)
	assert.Equal(t, before+1, testutil.ToFloat64(RefreshTotal.WithLabelValues("auto", "error")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordEnrich("intelligence", "cached")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watchfloor_enrich_requests_total")
}
