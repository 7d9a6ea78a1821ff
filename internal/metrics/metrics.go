// Package metrics defines Prometheus metrics for the session engine and the
// development auth backend.
//
// Metric naming follows Prometheus conventions:
//   - sessiongate_ prefix for all metrics
//   - _total suffix for counters
package metrics

import (
	"net/http"

	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements authsession.Observer.
type Recorder struct {
	ChecksTotal      *prometheus.CounterVec
	RefreshesTotal   *prometheus.CounterVec
	RoleFetchesTotal *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	State            *prometheus.GaugeVec
}

var _ authsession.Observer = (*Recorder)(nil)

// NewRecorder creates the session metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_checks_total",
				Help: "Completed auth status checks by outcome.",
			},
			[]string{"outcome"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_refreshes_total",
				Help: "Refresh attempts by outcome. shared=true means the caller joined an exchange already in flight.",
			},
			[]string{"outcome", "shared"},
		),
		RoleFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_role_fetches_total",
				Help: "Role assignment fetches by outcome.",
			},
			[]string{"outcome"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_state_transitions_total",
				Help: "Session state transitions.",
			},
			[]string{"from", "to"},
		),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessiongate_state",
				Help: "1 for the current session state, 0 otherwise.",
			},
			[]string{"state"},
		),
	}

	reg.MustRegister(r.ChecksTotal, r.RefreshesTotal, r.RoleFetchesTotal, r.TransitionsTotal, r.State)
	return r
}

func (r *Recorder) CheckCompleted(outcome string) {
	r.ChecksTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RefreshCompleted(outcome string, shared bool) {
	s := "false"
	if shared {
		s = "true"
	}
	r.RefreshesTotal.WithLabelValues(outcome, s).Inc()
}

func (r *Recorder) RolesFetched(outcome string) {
	r.RoleFetchesTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) StateChanged(from, to authsession.State) {
	r.TransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	r.State.WithLabelValues(from.String()).Set(0)
	r.State.WithLabelValues(to.String()).Set(1)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
