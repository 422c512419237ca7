package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PointsStored counts persisted path points by room kind (anonymous/registered)
	PointsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "path_points_stored_total", Help: "Path points persisted."},
		[]string{"room_kind"},
	)
	// RateLimited counts rejected requests by limiter scope
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rate_limited_total", Help: "Requests rejected by the rate limiter."},
		[]string{"scope"},
	)
	// WsSessions tracks currently open live-view connections
	WsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_sessions", Help: "Open WebSocket viewer sessions."},
	)
	// WsMessages counts frames sent to viewers by message type and outcome
	WsMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ws_messages_total", Help: "WebSocket frames sent to viewers."},
		[]string{"type", "outcome"},
	)
	// PushSends counts push hand-offs by outcome
	PushSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "push_sends_total", Help: "Push notification hand-offs."},
		[]string{"outcome"},
	)
	// JanitorDeletions counts points deleted by background jobs
	JanitorDeletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "janitor_deletions_total", Help: "Path points deleted by background jobs."},
		[]string{"job"},
	)
	// JanitorRejected counts jobs rejected because a queue was full
	JanitorRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "janitor_rejected_total", Help: "Background jobs rejected by a full queue."},
		[]string{"job"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PointsStored)
		Registry.MustRegister(RateLimited)
		Registry.MustRegister(WsSessions)
		Registry.MustRegister(WsMessages)
		Registry.MustRegister(PushSends)
		Registry.MustRegister(JanitorDeletions)
		Registry.MustRegister(JanitorRejected)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
