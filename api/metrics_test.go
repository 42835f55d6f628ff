package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/disaster-intake-api/models"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ReportCreated(&models.EmergencyReport{Channel: models.ChannelSMS, Category: models.CategoryFire})
	m.ReportCreated(&models.EmergencyReport{Channel: models.ChannelSMS, Category: models.CategoryFire})
	m.ChannelStep(models.ChannelUSSD, "menu")
	m.ObserveConfirmation(models.ConfirmationVoice, "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReportsCreated.WithLabelValues("sms", "fire")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelSteps.WithLabelValues("ussd", "menu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Confirmations.WithLabelValues("voice", "failed")))
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	m := NewMetrics()
	r := New(m)
	r.HandleFunc("/webhooks/ivr/{action}", func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodPost)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"alive": true}`, rr.Body.String())

	for _, action := range []string{"welcome", "category"} {
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/ivr/"+action, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_request_duration_seconds_count{method="POST",route="/webhooks/ivr/{action}"} 2`)
}
