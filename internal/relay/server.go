package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"parley/internal/domain"
	"parley/internal/observability"
)

const (
	// DefaultRate is the sustained envelope rate allowed per sender.
	DefaultRate = rate.Limit(10)
	// DefaultBurst is the per-sender token bucket size.
	DefaultBurst = 50
	// DefaultMaxBody caps request bodies. Files travel in one envelope.
	DefaultMaxBody = 64 << 20
	// DefaultMaxQueue caps undelivered envelopes per recipient.
	DefaultMaxQueue = 1024
)

// ServerOptions configures a Server. Zero values select defaults.
type ServerOptions struct {
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Rate     rate.Limit
	Burst    int
	MaxBody  int64
	MaxQueue int
	Now      func() time.Time
}

// KeyRegistration is the body of POST /keys.
type KeyRegistration struct {
	UserID    domain.UserID    `json:"user_id"`
	PublicKey domain.PublicKey `json:"public_key"`
}

type ackRequest struct {
	Count int `json:"count"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Server is an in-memory relay.
type Server struct {
	log      zerolog.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	rate     rate.Limit
	burst    int
	maxBody  int64
	maxQueue int
	now      func() time.Time

	mu     sync.RWMutex
	keys   map[domain.UserID]domain.PublicKey
	queues map[domain.UserID][]domain.Envelope
	queued int

	limiterMu sync.Mutex
	limiters  map[domain.UserID]*rate.Limiter
}

// NewServer returns a relay with empty state.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		log:      opts.Logger.With().Str("component", "relay").Logger(),
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		rate:     opts.Rate,
		burst:    opts.Burst,
		maxBody:  opts.MaxBody,
		maxQueue: opts.MaxQueue,
		now:      opts.Now,
		keys:     make(map[domain.UserID]domain.PublicKey),
		queues:   make(map[domain.UserID][]domain.Envelope),
		limiters: make(map[domain.UserID]*rate.Limiter),
	}
	if s.rate <= 0 {
		s.rate = DefaultRate
	}
	if s.burst <= 0 {
		s.burst = DefaultBurst
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBody
	}
	if s.maxQueue <= 0 {
		s.maxQueue = DefaultMaxQueue
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the relay's HTTP routes wrapped in access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /keys", s.handleRegisterKey)
	mux.HandleFunc("GET /keys/{user}", s.handleFetchKey)
	mux.HandleFunc("POST /msg/{user}", s.handleSend)
	mux.HandleFunc("GET /msg/{user}", s.handleFetch)
	mux.HandleFunc("POST /msg/{user}/ack", s.handleAck)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		mux.Handle("GET /metrics", observability.Handler(s.gatherer))
	}
	return s.accessLog(mux)
}

func (s *Server) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	var reg KeyRegistration
	if !s.decode(w, r, &reg) {
		return
	}
	if reg.UserID == "" || reg.PublicKey.IsZero() {
		httpError(w, http.StatusBadRequest, "user_id and public_key required")
		return
	}

	s.mu.Lock()
	old, existed := s.keys[reg.UserID]
	s.keys[reg.UserID] = reg.PublicKey
	s.mu.Unlock()

	ev := s.log.Info()
	if existed && !old.Equal(reg.PublicKey) {
		ev = s.log.Warn().Bool("replaced", true)
	}
	ev.Str("user", reg.UserID.String()).Msg("public key registered")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetchKey(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(r.PathValue("user"))
	s.mu.RLock()
	pk, ok := s.keys[user]
	s.mu.RUnlock()
	if !ok {
		httpError(w, http.StatusNotFound, "no key for user")
		return
	}
	writeJSON(w, http.StatusOK, KeyRegistration{UserID: user, PublicKey: pk})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	to := domain.UserID(r.PathValue("user"))
	var env domain.Envelope
	if !s.decode(w, r, &env) {
		return
	}
	if err := env.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if env.From == "" || env.To != to {
		httpError(w, http.StatusBadRequest, "envelope from/to do not match route")
		return
	}
	if !s.limiter(env.From).Allow() {
		s.metrics.RelayLimited()
		s.log.Warn().Str("from", env.From.String()).Msg("rate limit exceeded")
		w.Header().Set("Retry-After", "1")
		httpError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp == 0 {
		env.Timestamp = s.now().UnixMilli()
	}

	s.mu.Lock()
	if len(s.queues[to]) >= s.maxQueue {
		s.mu.Unlock()
		httpError(w, http.StatusInsufficientStorage, "mailbox full")
		return
	}
	s.queues[to] = append(s.queues[to], env)
	s.queued++
	depth := s.queued
	s.mu.Unlock()

	s.metrics.RelayQueued(depth)
	s.log.Debug().Str("id", env.ID).Str("kind", string(env.Kind)).
		Str("from", env.From.String()).Str("to", to.String()).Msg("envelope queued")
	writeJSON(w, http.StatusAccepted, sendResponse{ID: env.ID})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(r.PathValue("user"))
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			httpError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	s.mu.RLock()
	q := s.queues[user]
	if limit == 0 || limit > len(q) {
		limit = len(q)
	}
	out := make([]domain.Envelope, limit)
	copy(out, q[:limit])
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(r.PathValue("user"))
	var req ackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Count < 0 {
		httpError(w, http.StatusBadRequest, "negative count")
		return
	}

	s.mu.Lock()
	q := s.queues[user]
	n := min(req.Count, len(q))
	clear(q[:n])
	if n == len(q) {
		delete(s.queues, user)
	} else {
		s.queues[user] = q[n:]
	}
	s.queued -= n
	depth := s.queued
	s.mu.Unlock()

	s.metrics.RelayQueued(depth)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) limiter(sender domain.UserID) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[sender]
	if !ok {
		l = rate.NewLimiter(s.rate, s.burst)
		s.limiters[sender] = l
	}
	return l
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "body too large")
			return false
		}
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// accessLog records method, path, remote, status, bytes and duration.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RelayRequest(route, rec.status)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
