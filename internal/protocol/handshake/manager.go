package handshake

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/replay"
	"parley/internal/sessions"
)

var tracer = otel.Tracer("parley/handshake")

// Config wires a Manager. Self, SigningKey, Directory, Sessions and Guard are
// required.
type Config struct {
	Self       domain.UserID
	SigningKey *ecdsa.PrivateKey
	Directory  domain.Directory
	Sessions   *sessions.Directory
	Guard      *replay.Guard

	// DisableSignatureVerification skips checking Init and Response
	// signatures and the directory key pin. Test hook only.
	DisableSignatureVerification bool

	Now      func() time.Time
	NewNonce func() (string, error)
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
}

type slot struct {
	mu sync.Mutex
	hs *handshakeSession
}

// Manager runs key exchanges with any number of peers.
type Manager struct {
	self       domain.UserID
	signingKey *ecdsa.PrivateKey
	longTerm   domain.PublicKey
	directory  domain.Directory
	sessions   *sessions.Directory
	guard      *replay.Guard
	verify     bool
	now        func() time.Time
	newNonce   func() (string, error)
	log        zerolog.Logger
	metrics    *observability.Metrics

	mu    sync.Mutex
	slots map[domain.UserID]*slot
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case cfg.Self == "":
		return nil, errors.New("handshake: self user id required")
	case cfg.SigningKey == nil:
		return nil, errors.New("handshake: signing key required")
	case cfg.Directory == nil:
		return nil, errors.New("handshake: directory required")
	case cfg.Sessions == nil:
		return nil, errors.New("handshake: session directory required")
	case cfg.Guard == nil:
		return nil, errors.New("handshake: replay guard required")
	}
	longTerm, err := crypto.ExportPublicKey(&cfg.SigningKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("handshake: signing key: %w", err)
	}
	m := &Manager{
		self:       cfg.Self,
		signingKey: cfg.SigningKey,
		longTerm:   longTerm,
		directory:  cfg.Directory,
		sessions:   cfg.Sessions,
		guard:      cfg.Guard,
		verify:     !cfg.DisableSignatureVerification,
		now:        cfg.Now,
		newNonce:   cfg.NewNonce,
		log:        cfg.Logger.With().Str("component", "handshake").Str("self", cfg.Self.String()).Logger(),
		metrics:    cfg.Metrics,
		slots:      make(map[domain.UserID]*slot),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newNonce == nil {
		m.newNonce = crypto.NewNonce
	}
	if !m.verify {
		observability.SecurityEvent(m.log, observability.EventSignaturesDisabled, m.self,
			observability.SeverityHigh, nil)
	}
	return m, nil
}

func (m *Manager) slot(peer domain.UserID) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[peer]
	if !ok {
		s = &slot{}
		m.slots[peer] = s
	}
	return s
}

// State reports the handshake state with peer.
func (m *Manager) State(peer domain.UserID) domain.HandshakeState {
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hs != nil {
		return s.hs.state
	}
	if m.sessions.Has(peer) {
		return domain.StateEstablished
	}
	return domain.StateIdle
}

// Reset abandons any pending handshake with peer and drops its session key.
func (m *Manager) Reset(peer domain.UserID) {
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hs != nil {
		s.hs.discard()
		s.hs = nil
	}
	m.sessions.Remove(peer)
	m.guard.ResetPeer(peer)
	m.metrics.SessionsChanged(len(m.sessions.Peers()))
	m.log.Info().Str("peer", peer.String()).Msg("handshake reset")
}

// Abandon drops the pending handshake with peer, if any, leaving an
// established session in place.
func (m *Manager) Abandon(peer domain.UserID) {
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hs != nil {
		s.hs.discard()
		s.hs = nil
	}
}

// Established reports whether a session key with peer is installed.
func (m *Manager) Established(peer domain.UserID) bool {
	return m.sessions.Has(peer)
}

// Logout abandons every pending handshake, drops all session keys and forgets
// per-peer sequence state. Seen nonces are kept.
func (m *Manager) Logout() {
	m.mu.Lock()
	slots := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.hs != nil {
			s.hs.discard()
			s.hs = nil
		}
		s.mu.Unlock()
	}
	m.sessions.Clear()
	m.guard.ResetSequences()
	m.metrics.SessionsChanged(0)
	m.log.Info().Msg("logged out; all sessions cleared")
}

// Expire abandons pending handshakes created more than maxAge ago and returns
// how many were dropped. Established sessions are not affected.
func (m *Manager) Expire(maxAge time.Duration) int {
	m.mu.Lock()
	peers := make([]domain.UserID, 0, len(m.slots))
	for p := range m.slots {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	n := 0
	for _, p := range peers {
		s := m.slot(p)
		s.mu.Lock()
		if s.hs != nil && s.hs.createdAt.Before(cutoff) {
			m.log.Info().Str("peer", p.String()).Str("state", string(s.hs.state)).Msg("pending handshake expired")
			s.hs.discard()
			s.hs = nil
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// HandleIncoming dispatches a handshake envelope and returns the reply to
// send, if any.
func (m *Manager) HandleIncoming(ctx context.Context, env domain.Envelope) (*domain.Envelope, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "handshake.HandleIncoming", trace.WithAttributes(
		attribute.String("kind", string(env.Kind)),
		attribute.String("peer", env.From.String()),
	))
	defer span.End()

	reply, err := m.dispatch(ctx, env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, observability.Reason(err))
	}
	return reply, err
}

func (m *Manager) dispatch(ctx context.Context, env domain.Envelope) (*domain.Envelope, error) {
	switch env.Kind {
	case domain.KindInit:
		resp, err := m.HandleInit(ctx, *env.Init)
		if err != nil || resp == nil {
			return nil, err
		}
		return m.envelope(domain.KindResponse, resp.ReceiverID, func(e *domain.Envelope) { e.Response = resp }), nil
	case domain.KindResponse:
		confirm, err := m.HandleResponse(ctx, *env.Response)
		if err != nil {
			return nil, err
		}
		return m.envelope(domain.KindConfirm, confirm.ReceiverID, func(e *domain.Envelope) { e.Confirm = &confirm }), nil
	case domain.KindConfirm:
		ack, err := m.HandleConfirm(ctx, *env.Confirm)
		if err != nil {
			return nil, err
		}
		return m.envelope(domain.KindAck, ack.ReceiverID, func(e *domain.Envelope) { e.Ack = &ack }), nil
	case domain.KindAck:
		return nil, m.HandleAck(ctx, *env.Ack)
	}
	return nil, fmt.Errorf("%w: %q is not a handshake message", domain.ErrMalformedEnvelope, env.Kind)
}

// InitEnvelope wraps an Init for the relay.
func (m *Manager) InitEnvelope(init domain.InitMessage) domain.Envelope {
	return *m.envelope(domain.KindInit, init.ReceiverID, func(e *domain.Envelope) { e.Init = &init })
}

func (m *Manager) envelope(kind domain.Kind, to domain.UserID, set func(*domain.Envelope)) *domain.Envelope {
	e := &domain.Envelope{Kind: kind, From: m.self, To: to, Timestamp: m.now().UnixMilli()}
	set(e)
	return e
}

// checkAddressing rejects messages not meant for us or claiming to be from us.
func (m *Manager) checkAddressing(sender, receiver domain.UserID) error {
	if receiver != m.self {
		return fmt.Errorf("%w: for %q", domain.ErrMisdirected, receiver)
	}
	if sender == m.self {
		return domain.ErrSelfHandshakeRejected
	}
	return nil
}

// authenticate verifies a signed handshake message from peer: freshness, the
// signature over the claimed key, and that the claimed key is the one on
// record.
func (m *Manager) authenticate(
	ctx context.Context,
	peer domain.UserID,
	claimed domain.PublicKey,
	timestamp int64,
	verifySig func() error,
) error {
	if !m.guard.Fresh(time.UnixMilli(timestamp)) {
		return domain.ErrTimestampExpired
	}
	if !m.verify {
		return nil
	}
	if err := verifySig(); err != nil {
		return err
	}
	onRecord, err := m.directory.LongTermPublicKey(ctx, peer)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPeerPublicKey) {
			return err
		}
		return fmt.Errorf("%w: directory lookup: %v", domain.ErrUnknownPeerPublicKey, err)
	}
	if !onRecord.Equal(claimed) {
		return fmt.Errorf("%w: long-term key does not match directory", domain.ErrInvalidSignature)
	}
	return nil
}

// checkNonce records a handshake nonce with the replay guard.
func (m *Manager) checkNonce(peer domain.UserID, nonce string, timestamp int64) error {
	v := m.guard.CheckAndRecord(replay.Check{
		Peer:      peer,
		Nonce:     nonce,
		Timestamp: time.UnixMilli(timestamp),
	})
	return v.Err()
}

// abort drops the pending handshake in s and reports err.
func (m *Manager) abort(s *slot, peer domain.UserID, err error) error {
	if s.hs != nil {
		s.hs.discard()
		s.hs = nil
	}
	m.reject(peer, err)
	return err
}

// reject records a rejected handshake message.
func (m *Manager) reject(peer domain.UserID, err error) {
	m.metrics.HandshakeFailed(err)
	event, sev := observability.EventSignatureInvalid, observability.SeverityHigh
	switch {
	case errors.Is(err, domain.ErrKeyConfirmationFailed):
		event = observability.EventConfirmationFailed
	case errors.Is(err, domain.ErrUnknownPeerPublicKey):
		event, sev = observability.EventUnknownPeerKey, observability.SeverityMedium
	case errors.Is(err, domain.ErrTimestampExpired), errors.Is(err, domain.ErrNonceReplayed):
		event, sev = observability.EventReplayRejected, observability.SeverityMedium
	case !errors.Is(err, domain.ErrInvalidSignature):
		m.log.Warn().Err(err).Str("peer", peer.String()).Msg("handshake message rejected")
		return
	}
	observability.SecurityEvent(m.log, event, peer, sev, err)
}

// install moves an agreed key into the session directory.
func (m *Manager) install(s *slot) {
	hs := s.hs
	m.guard.ResetPeer(hs.peer)
	m.sessions.Set(hs.session(m.now()))
	m.metrics.HandshakeEstablished(string(hs.role), len(m.sessions.Peers()))
	observability.SecurityEvent(m.log, observability.EventHandshakeEstablished, hs.peer,
		observability.SeverityLow, nil)
	hs.state = domain.StateEstablished
	hs.discard()
	s.hs = nil
}
