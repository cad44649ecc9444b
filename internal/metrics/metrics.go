package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "app", Name: "http_requests_total", Help: "Number of HTTP requests by method, path and status."},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "app", Name: "http_request_duration_seconds", Help: "HTTP request latency by method and path."},
		[]string{"method", "path"},
	)
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "app", Name: "websocket_connections", Help: "Number of live websocket connections."},
	)
	BroadcastDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "app", Name: "broadcast_delivered_total", Help: "Number of realtime events delivered by event name."},
		[]string{"event"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "app", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter key type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequestsTotal)
	reg.MustRegister(HTTPRequestDuration)
	reg.MustRegister(WebsocketConnections)
	reg.MustRegister(BroadcastDelivered)
	reg.MustRegister(RateLimitRejected)
}
