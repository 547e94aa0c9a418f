package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Handshake metrics
	HandshakesTotal   *prometheus.CounterVec
	HandshakeFailures *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge

	// Data metrics
	ReplayRejections *prometheus.CounterVec
	MessagesTotal    *prometheus.CounterVec
	DecryptFailures  prometheus.Counter
	FilesTotal       *prometheus.CounterVec
	FileBytesTotal   *prometheus.CounterVec

	// Relay metrics
	RelayRequests    *prometheus.CounterVec
	RelayQueueDepth  prometheus.Gauge
	RelayRateLimited prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HandshakesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_handshakes_total",
				Help: "Handshakes established, by local role",
			},
			[]string{"role"},
		),
		HandshakeFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_handshake_failures_total",
				Help: "Handshake messages rejected, by reason",
			},
			[]string{"reason"},
		),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "parley_active_sessions",
			Help: "Peers with an established session key",
		}),
		ReplayRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_replay_rejections_total",
				Help: "Data messages skipped by the replay guard, by verdict",
			},
			[]string{"verdict"},
		),
		MessagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_messages_total",
				Help: "Messages encrypted or delivered",
			},
			[]string{"direction"},
		),
		DecryptFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "parley_decrypt_failures_total",
			Help: "AEAD tag mismatches on messages and file chunks",
		}),
		FilesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_files_total",
				Help: "Files encrypted or reassembled",
			},
			[]string{"direction"},
		),
		FileBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_file_bytes_total",
				Help: "Plaintext file bytes processed",
			},
			[]string{"direction"},
		),
		RelayRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_relay_requests_total",
				Help: "Relay HTTP requests, by route and status code",
			},
			[]string{"route", "code"},
		),
		RelayQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "parley_relay_queued_envelopes",
			Help: "Envelopes waiting for delivery across all mailboxes",
		}),
		RelayRateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "parley_relay_rate_limited_total",
			Help: "Relay requests rejected by the per-sender limiter",
		}),
	}
}

// Handler serves the metrics in gatherer over HTTP.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// HandshakeEstablished counts a completed handshake.
func (m *Metrics) HandshakeEstablished(role string, active int) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(role).Inc()
	m.ActiveSessions.Set(float64(active))
}

// HandshakeFailed counts a rejected handshake message.
func (m *Metrics) HandshakeFailed(err error) {
	if m == nil {
		return
	}
	m.HandshakeFailures.WithLabelValues(Reason(err)).Inc()
}

// SessionsChanged updates the active session gauge.
func (m *Metrics) SessionsChanged(active int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(active))
}

// ReplayRejected counts a skipped data message.
func (m *Metrics) ReplayRejected(verdict string) {
	if m == nil {
		return
	}
	m.ReplayRejections.WithLabelValues(verdict).Inc()
}

// Message counts a message in direction "out" or "in".
func (m *Metrics) Message(direction string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(direction).Inc()
}

// DecryptFailed counts an AEAD failure.
func (m *Metrics) DecryptFailed() {
	if m == nil {
		return
	}
	m.DecryptFailures.Inc()
}

// File counts a file and its plaintext size in direction "out" or "in".
func (m *Metrics) File(direction string, size int64) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(direction).Inc()
	m.FileBytesTotal.WithLabelValues(direction).Add(float64(size))
}

// RelayRequest counts one relay HTTP request.
func (m *Metrics) RelayRequest(route string, code int) {
	if m == nil {
		return
	}
	m.RelayRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RelayQueued sets the total number of queued envelopes.
func (m *Metrics) RelayQueued(depth int) {
	if m == nil {
		return
	}
	m.RelayQueueDepth.Set(float64(depth))
}

// RelayLimited counts a request rejected by the rate limiter.
func (m *Metrics) RelayLimited() {
	if m == nil {
		return
	}
	m.RelayRateLimited.Inc()
}
