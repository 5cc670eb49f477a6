// Package metrics holds the Prometheus collectors shared by the HTTP
// middleware and the services.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campussafe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campussafe_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campussafe_auth_rejections_total",
			Help: "Total number of unauthorized or forbidden responses",
		},
		[]string{"reason"},
	)
	FriendRequestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campussafe_friend_request_transitions_total",
			Help: "Friend request state changes by resulting status",
		},
		[]string{"status"},
	)
	LocationPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campussafe_location_publishes_total",
			Help: "Location fixes received, by outcome",
		},
		[]string{"outcome"},
	)
	RealtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campussafe_realtime_connections",
			Help: "Open location stream websocket connections",
		},
	)
	IncidentReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campussafe_incident_reports_total",
			Help: "Incident reports by category",
		},
		[]string{"category"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthRejections,
			FriendRequestTransitions,
			LocationPublishes,
			RealtimeConnections,
			IncidentReports,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
