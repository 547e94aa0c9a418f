package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"parley/internal/domain"
	"parley/internal/protocol/handshake"
)

// Service performs key exchanges over the relay.
//
// A session is the 256-bit key agreed with a peer plus the nonces it was
// bound to. This service handles:
//   - Sending our signed Init to a peer.
//   - Answering a peer's Init, Response or Confirm with the next message.
//   - Resetting, expiring and clearing handshake state.
type Service struct {
	manager *handshake.Manager
	relay   domain.RelayClient
	log     zerolog.Logger
}

// New constructs a session service over manager and relay.
func New(manager *handshake.Manager, relay domain.RelayClient, log zerolog.Logger) *Service {
	return &Service{
		manager: manager,
		relay:   relay,
		log:     log.With().Str("component", "session").Logger(),
	}
}

// Initiate starts a handshake with peer and posts the Init. The session is
// usable once the peer's Ack has been handled.
func (s *Service) Initiate(ctx context.Context, peer domain.UserID) error {
	init, err := s.manager.Initiate(ctx, peer)
	if err != nil {
		return err
	}
	if err := s.relay.SendEnvelope(ctx, s.manager.InitEnvelope(init)); err != nil {
		// Nothing went out, so the pending attempt can never complete.
		s.manager.Abandon(peer)
		return oops.Wrapf(err, "send init to %q", peer)
	}
	return nil
}

// Handle processes one handshake envelope and posts the reply, if any.
func (s *Service) Handle(ctx context.Context, env domain.Envelope) error {
	reply, err := s.manager.HandleIncoming(ctx, env)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	if err := s.relay.SendEnvelope(ctx, *reply); err != nil {
		return oops.Wrapf(err, "send %s to %q", reply.Kind, reply.To)
	}
	return nil
}

// State reports the handshake state with peer.
func (s *Service) State(peer domain.UserID) domain.HandshakeState {
	return s.manager.State(peer)
}

// Established reports whether messages can be sent to peer.
func (s *Service) Established(peer domain.UserID) bool {
	return s.manager.Established(peer)
}

// Reset abandons all state with peer.
func (s *Service) Reset(peer domain.UserID) {
	s.manager.Reset(peer)
}

// Expire drops pending handshakes older than maxAge.
func (s *Service) Expire(maxAge time.Duration) int {
	n := s.manager.Expire(maxAge)
	if n > 0 {
		s.log.Info().Int("expired", n).Msg("stale handshakes dropped")
	}
	return n
}

// Logout clears every session and pending handshake.
func (s *Service) Logout() {
	s.manager.Logout()
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
