package portalapi

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeOK            = "ok"
	OutcomeRetried       = "retried"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeNotLoggedIn   = "not_logged_in"
	OutcomeSessionEnded  = "session_expired"
	OutcomeTransport     = "transport_error"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeBackendStatus = "backend_error"

	RefreshSuccess  = "success"
	RefreshRejected = "rejected"
	RefreshFailed   = "failed"
	RefreshReused   = "reused"
)

// Metrics counts executor outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	forcedLogouts prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_api_requests_total",
			Help: "Authenticated backend requests by final outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_token_refresh_total",
			Help: "Access token refresh attempts by result.",
		}, []string{"result"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_forced_logout_total",
			Help: "Sessions ended because the refresh token was rejected.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.refreshes, m.forcedLogouts)
	}
	return m
}

func (m *Metrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) forcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}
