package handshake

import (
	"context"
	"crypto/subtle"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/protocol/transcript"
)

// Initiate starts a handshake with peer and returns the signed Init to send.
// Any pending handshake with peer is abandoned; an established session stays
// usable until the new one replaces it.
func (m *Manager) Initiate(ctx context.Context, peer domain.UserID) (domain.InitMessage, error) {
	if peer == m.self {
		return domain.InitMessage{}, domain.ErrSelfHandshakeRejected
	}
	_, span := tracer.Start(ctx, "handshake.Initiate", trace.WithAttributes(attribute.String("peer", peer.String())))
	defer span.End()

	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hs != nil {
		m.log.Info().Str("peer", peer.String()).Str("state", string(s.hs.state)).
			Msg("abandoning pending handshake for new initiation")
		s.hs.discard()
		s.hs = nil
	}

	hs := &handshakeSession{
		peer:      peer,
		role:      domain.RoleInitiator,
		state:     domain.StateInitiating,
		createdAt: m.now(),
	}
	init, err := m.buildInit(hs)
	if err != nil {
		hs.discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, "init")
		return domain.InitMessage{}, err
	}
	hs.state = domain.StateInitiated
	s.hs = hs

	m.log.Debug().Str("peer", peer.String()).Msg("init sent")
	return init, nil
}

func (m *Manager) buildInit(hs *handshakeSession) (domain.InitMessage, error) {
	eph, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return domain.InitMessage{}, fmt.Errorf("ephemeral key: %w", err)
	}
	nonce, err := m.newNonce()
	if err != nil {
		return domain.InitMessage{}, err
	}
	hs.ownEphemeral = eph
	hs.ownNonce = nonce

	init := domain.InitMessage{
		SenderID:                 m.self,
		ReceiverID:               hs.peer,
		SenderLongTermPublicKey:  m.longTerm,
		SenderEphemeralPublicKey: crypto.ExportEphemeralPublicKey(eph.PublicKey()),
		Nonce:                    nonce,
		Timestamp:                m.now().UnixMilli(),
	}
	if err := transcript.SignInit(m.signingKey, &init); err != nil {
		return domain.InitMessage{}, err
	}
	return init, nil
}

// HandleResponse verifies the responder's answer to our Init, derives the
// session key and returns the Confirm to send.
func (m *Manager) HandleResponse(ctx context.Context, msg domain.ResponseMessage) (domain.KeyConfirmation, error) {
	if err := m.checkAddressing(msg.SenderID, msg.ReceiverID); err != nil {
		return domain.KeyConfirmation{}, err
	}
	peer := msg.SenderID
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()

	hs := s.hs
	if hs == nil || hs.role != domain.RoleInitiator || hs.state != domain.StateInitiated {
		return domain.KeyConfirmation{}, fmt.Errorf("%w: response from %q", domain.ErrUnexpectedMessage, peer)
	}
	if hs.ownEphemeral == nil {
		return domain.KeyConfirmation{}, m.abort(s, peer, domain.ErrEphemeralKeyUnavailable)
	}
	if subtle.ConstantTimeCompare([]byte(msg.NonceInitiator), []byte(hs.ownNonce)) != 1 {
		return domain.KeyConfirmation{}, domain.ErrNonceMismatch
	}
	if err := m.authenticate(ctx, peer, msg.SenderLongTermPublicKey, msg.Timestamp, func() error {
		return transcript.VerifyResponse(msg)
	}); err != nil {
		return domain.KeyConfirmation{}, m.abort(s, peer, err)
	}
	if err := m.checkNonce(peer, msg.NonceResponder, msg.Timestamp); err != nil {
		return domain.KeyConfirmation{}, m.abort(s, peer, err)
	}

	hs.state = domain.StateConfirming
	hs.peerNonce = msg.NonceResponder
	hs.peerEphemeral = msg.SenderEphemeralPublicKey
	if err := hs.deriveKey(m.self); err != nil {
		return domain.KeyConfirmation{}, m.abort(s, peer, err)
	}

	sealed, err := crypto.Encrypt(hs.pendingKey[:], []byte(confirmPrefix+hs.peerNonce),
		transcript.Confirmation(domain.KindConfirm, m.self, peer))
	if err != nil {
		return domain.KeyConfirmation{}, m.abort(s, peer, err)
	}
	m.log.Debug().Str("peer", peer.String()).Msg("response verified, confirm sent")
	return domain.KeyConfirmation{SenderID: m.self, ReceiverID: peer, Sealed: sealed}, nil
}

// HandleAck checks the responder's acknowledgement and installs the session.
func (m *Manager) HandleAck(_ context.Context, msg domain.KeyConfirmation) error {
	if err := m.checkAddressing(msg.SenderID, msg.ReceiverID); err != nil {
		return err
	}
	peer := msg.SenderID
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()

	hs := s.hs
	if hs == nil || hs.role != domain.RoleInitiator || hs.state != domain.StateConfirming {
		return fmt.Errorf("%w: ack from %q", domain.ErrUnexpectedMessage, peer)
	}
	if !m.confirmed(hs, msg, domain.KindAck, ackPrefix) {
		return m.abort(s, peer, domain.ErrKeyConfirmationFailed)
	}
	m.install(s)
	m.log.Info().Str("peer", peer.String()).Str("role", string(domain.RoleInitiator)).Msg("session established")
	return nil
}

// confirmed reports whether msg decrypts under the pending key to the
// expected confirmation text bound to the responder nonce.
func (m *Manager) confirmed(hs *handshakeSession, msg domain.KeyConfirmation, kind domain.Kind, prefix string) bool {
	if hs.pendingKey == nil {
		return false
	}
	pt, err := crypto.Decrypt(hs.pendingKey[:], msg.Sealed, transcript.Confirmation(kind, msg.SenderID, msg.ReceiverID))
	if err != nil {
		return false
	}
	_, nR := hs.nonces()
	return subtle.ConstantTimeCompare(pt, []byte(prefix+nR)) == 1
}
