package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the auth counters.
const (
	resultSuccess            = "success"
	resultInvalidCredentials = "invalid_credentials"
	resultInvalidToken       = "invalid_token"
	resultUserNotFound       = "user_not_found"
	resultNoSession          = "no_session"
	resultSessionExpired     = "session_expired"
	resultTokenMismatch      = "token_mismatch"
	resultError              = "error"
)

// Metrics holds the authentication counters.
type Metrics struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   prometheus.Counter
}

// NewMetrics creates the auth counters and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Token refresh attempts by result",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Completed logouts",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.logins, m.refreshes, m.logouts)
	}
	return m
}
