package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	m := New()
	require.NotNil(t, m.Registry())

	m.ObserveReservation(OutcomeReserved)
	m.ObserveSpend("event", 10)
	m.ObserveUpload("event", OutcomeSuccess, time.Second)
	m.ObservePublished(3)
	m.ObserveCleanupFailure(1)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}

func TestObserveReservation(t *testing.T) {
	m := New()
	m.ObserveReservation(OutcomeReserved)
	m.ObserveReservation(OutcomeReserved)
	m.ObserveReservation(OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Reservations.WithLabelValues(OutcomeReserved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Reservations.WithLabelValues(OutcomeCommitted)))
}

func TestObserveSpend_IgnoresZero(t *testing.T) {
	m := New()
	m.ObserveSpend("community", 0)
	m.ObserveSpend("community", 250)
	assert.Equal(t, 250.0, testutil.ToFloat64(m.WincSpent.WithLabelValues("community")))
}

func TestObservePublished(t *testing.T) {
	m := New()
	m.ObservePublished(100)
	m.ObservePublished(24)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PublishedFiles))
	assert.Equal(t, 124.0, testutil.ToFloat64(m.PublishedBytes))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReservation(OutcomeReleased)
		m.ObserveSpend("event", 1)
		m.ObservePublished(1)
		m.ObserveUpload("event", OutcomeFailure, time.Millisecond)
		m.ObserveCleanupFailure(2)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveUpload("community", OutcomePartial, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `sponsor_deploy_uploads_total{outcome="partial",tier="community"} 1`))
	assert.Contains(t, body, "sponsor_deploy_upload_duration_seconds_bucket")
}
