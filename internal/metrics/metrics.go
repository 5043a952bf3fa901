package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_active_connections",
		Help: "Currently open realtime connections.",
	})

	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_broadcasts_total",
		Help: "Events fanned out to session rooms.",
	}, []string{"event"})

	AuthzDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_authz_denials_total",
		Help: "Denied authorization decisions by reason.",
	}, []string{"reason"})

	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_sessions_started_total",
		Help: "Collaboration sessions started.",
	})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
