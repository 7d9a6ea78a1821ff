package metrics

import "github.com/prometheus/client_golang/prometheus"

// Server holds the development backend's counters.
type Server struct {
	LoginsTotal    *prometheus.CounterVec
	RefreshesTotal *prometheus.CounterVec
	ReuseDetected  prometheus.Counter
	LogoutsTotal   prometheus.Counter
}

// NewServer creates the backend metrics and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	s := &Server{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_devauth_logins_total",
				Help: "Login attempts by result.",
			},
			[]string{"result"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_devauth_refreshes_total",
				Help: "Refresh exchanges by result.",
			},
			[]string{"result"},
		),
		ReuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessiongate_devauth_refresh_reuse_total",
			Help: "Rotated refresh credentials presented again; the whole login session is revoked.",
		}),
		LogoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessiongate_devauth_logouts_total",
			Help: "Logouts.",
		}),
	}

	reg.MustRegister(s.LoginsTotal, s.RefreshesTotal, s.ReuseDetected, s.LogoutsTotal)
	return s
}
