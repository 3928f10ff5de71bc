package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the login server's prometheus instruments.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	ActiveSessions  prometheus.GaugeFunc
	BannedAddresses prometheus.GaugeFunc
	GameServerLinks prometheus.GaugeFunc

	registry *prometheus.Registry
}

// New registers the instruments on a fresh registry. The gauges sample the
// live structures instead of being counted in parallel.
func New(sessionCount, banCount, linkCount func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logind",
			Name:      "login_attempts_total",
			Help:      "Login attempts by checkin result.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "logind",
			Name:      "active_sessions",
			Help:      "Sessions currently registered as authoritative.",
		}, func() float64 { return float64(sessionCount()) }),
		BannedAddresses: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "logind",
			Name:      "banned_addresses",
			Help:      "Active address ban entries.",
		}, func() float64 { return float64(banCount()) }),
		GameServerLinks: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "logind",
			Name:      "gameserver_links",
			Help:      "Authenticated game server links.",
		}, func() float64 { return float64(linkCount()) }),
		registry: reg,
	}

	reg.MustRegister(m.LoginAttempts, m.ActiveSessions, m.BannedAddresses, m.GameServerLinks)
	return m
}

// RecordResult counts one checkin outcome.
func (m *Metrics) RecordResult(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// Handler returns the exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
