// Package metrics exposes the prometheus instruments for the emergency core.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EmergenciesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emergency_created_total",
		Help: "Emergencies created, by severity",
	}, []string{"severity"})

	EmergenciesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emergency_resolved_total",
		Help: "Emergencies moved to RESOLVED",
	})

	DispatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_responses_total",
		Help: "EmergencyResponse rows created by the dispatch engine",
	})

	NotificationsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_persisted_total",
		Help: "Durable notification rows written, by type",
	}, []string{"type"})

	NotificationsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_push_total",
		Help: "Live pushes handed to the hub",
	})

	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_push_failures_total",
		Help: "Live pushes that failed and were swallowed",
	})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections",
		Help: "Currently registered websocket connections",
	})
)

// Handler serves the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
