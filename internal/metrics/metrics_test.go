package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Records(t *testing.T) {
	r := New()

	r.RecordIndicatorCall("ok")
	r.RecordIndicatorCall("ok")
	r.RecordAlert("preset_alert", "VOLUME_EXPLOSION")
	done := r.StartScan()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveScans))
	done("completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.IndicatorCalls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Alerts.WithLabelValues("preset_alert", "VOLUME_EXPLOSION")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveScans))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Scans.WithLabelValues("completed")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordIndicatorCall("ok")
		r.RecordPrediction("fallback")
		r.RecordSkippedScan()
		r.StartScan()("failed")
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.RecordPrediction("model")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dexalert_predictions_total{source="model"} 1`)
}
