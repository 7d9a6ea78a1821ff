package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeVecValue(gv *prometheus.GaugeVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := gv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.CheckCompleted(authsession.OutcomeAuthenticated)
	r.CheckCompleted(authsession.OutcomeAuthenticated)
	r.RefreshCompleted(authsession.OutcomeSuccess, false)
	r.RefreshCompleted(authsession.OutcomeSuccess, true)
	r.RefreshCompleted(authsession.OutcomeSuccess, true)
	r.RolesFetched(authsession.OutcomeFailed)

	require.Equal(t, 2.0, getCounterValue(r.ChecksTotal, authsession.OutcomeAuthenticated))
	require.Equal(t, 1.0, getCounterValue(r.RefreshesTotal, authsession.OutcomeSuccess, "false"))
	require.Equal(t, 2.0, getCounterValue(r.RefreshesTotal, authsession.OutcomeSuccess, "true"))
	require.Equal(t, 1.0, getCounterValue(r.RoleFetchesTotal, authsession.OutcomeFailed))
}

func TestRecorderStateGauge(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.StateChanged(authsession.StateInit, authsession.StateAuthenticating)
	r.StateChanged(authsession.StateAuthenticating, authsession.StateAuthenticated)

	from, to := authsession.StateAuthenticating.String(), authsession.StateAuthenticated.String()
	require.Equal(t, 1.0, getCounterValue(r.TransitionsTotal, from, to))
	require.Equal(t, 1.0, getGaugeVecValue(r.State, to))
	require.Equal(t, 0.0, getGaugeVecValue(r.State, from))
	require.Equal(t, 0.0, getGaugeVecValue(r.State, authsession.StateInit.String()))
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	require.Panics(t, func() { NewRecorder(reg) })

	// Server metrics live alongside the recorder without clashing.
	require.NotPanics(t, func() { NewServer(reg) })
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(reg)
	s.LoginsTotal.WithLabelValues("success").Inc()
	s.ReuseDetected.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sessiongate_devauth_logins_total{result="success"} 1`)
	require.Contains(t, string(body), "sessiongate_devauth_refresh_reuse_total 1")
}
