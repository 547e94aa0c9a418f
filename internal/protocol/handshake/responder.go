package handshake

import (
	"context"
	"fmt"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/protocol/transcript"
)

// HandleInit answers a peer's Init. It returns nil without error when the
// Init lost a glare tie-break and our own pending Init stands.
func (m *Manager) HandleInit(ctx context.Context, msg domain.InitMessage) (*domain.ResponseMessage, error) {
	if err := m.checkAddressing(msg.SenderID, msg.ReceiverID); err != nil {
		return nil, err
	}
	peer := msg.SenderID
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()

	// A rejected Init never touches a handshake already in progress.
	if err := m.authenticate(ctx, peer, msg.SenderLongTermPublicKey, msg.Timestamp, func() error {
		return transcript.VerifyInit(msg)
	}); err != nil {
		m.reject(peer, err)
		return nil, err
	}
	if _, err := crypto.ImportEphemeralPublicKey(msg.SenderEphemeralPublicKey); err != nil {
		m.reject(peer, err)
		return nil, err
	}
	if err := m.checkNonce(peer, msg.Nonce, msg.Timestamp); err != nil {
		m.reject(peer, err)
		return nil, err
	}

	if hs := s.hs; hs != nil {
		glare := hs.role == domain.RoleInitiator &&
			(hs.state == domain.StateInitiating || hs.state == domain.StateInitiated)
		if glare && m.self < peer {
			m.log.Info().Str("peer", peer.String()).Msg("glare: keeping own initiation")
			return nil, nil
		}
		m.log.Info().Str("peer", peer.String()).Str("state", string(hs.state)).
			Bool("glare", glare).Msg("abandoning pending handshake for peer init")
		hs.discard()
		s.hs = nil
	}

	hs := &handshakeSession{
		peer:          peer,
		role:          domain.RoleResponder,
		state:         domain.StateResponding,
		peerNonce:     msg.Nonce,
		peerEphemeral: msg.SenderEphemeralPublicKey,
		createdAt:     m.now(),
	}
	resp, err := m.buildResponse(hs)
	if err != nil {
		hs.discard()
		return nil, err
	}
	if err := hs.deriveKey(m.self); err != nil {
		hs.discard()
		return nil, err
	}
	hs.state = domain.StateResponded
	s.hs = hs

	m.log.Debug().Str("peer", peer.String()).Msg("init verified, response sent")
	return &resp, nil
}

func (m *Manager) buildResponse(hs *handshakeSession) (domain.ResponseMessage, error) {
	eph, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return domain.ResponseMessage{}, fmt.Errorf("ephemeral key: %w", err)
	}
	nonce, err := m.newNonce()
	if err != nil {
		return domain.ResponseMessage{}, err
	}
	hs.ownEphemeral = eph
	hs.ownNonce = nonce

	resp := domain.ResponseMessage{
		SenderID:                 m.self,
		ReceiverID:               hs.peer,
		SenderLongTermPublicKey:  m.longTerm,
		SenderEphemeralPublicKey: crypto.ExportEphemeralPublicKey(eph.PublicKey()),
		NonceInitiator:           hs.peerNonce,
		NonceResponder:           nonce,
		Timestamp:                m.now().UnixMilli(),
	}
	if err := transcript.SignResponse(m.signingKey, &resp); err != nil {
		return domain.ResponseMessage{}, err
	}
	return resp, nil
}

// HandleConfirm checks the initiator's proof of key possession, installs the
// session and returns the Ack to send.
func (m *Manager) HandleConfirm(_ context.Context, msg domain.KeyConfirmation) (domain.KeyConfirmation, error) {
	if err := m.checkAddressing(msg.SenderID, msg.ReceiverID); err != nil {
		return domain.KeyConfirmation{}, err
	}
	peer := msg.SenderID
	s := m.slot(peer)
	s.mu.Lock()
	defer s.mu.Unlock()

	hs := s.hs
	if hs == nil || hs.role != domain.RoleResponder || hs.state != domain.StateResponded {
		return domain.KeyConfirmation{}, fmt.Errorf("%w: confirm from %q", domain.ErrUnexpectedMessage, peer)
	}
	if !m.confirmed(hs, msg, domain.KindConfirm, confirmPrefix) {
		return domain.KeyConfirmation{}, m.abort(s, peer, domain.ErrKeyConfirmationFailed)
	}

	sealed, err := crypto.Encrypt(hs.pendingKey[:], []byte(ackPrefix+hs.ownNonce),
		transcript.Confirmation(domain.KindAck, m.self, peer))
	if err != nil {
		return domain.KeyConfirmation{}, m.abort(s, peer, err)
	}
	m.install(s)
	m.log.Info().Str("peer", peer.String()).Str("role", string(domain.RoleResponder)).Msg("session established")
	return domain.KeyConfirmation{SenderID: m.self, ReceiverID: peer, Sealed: sealed}, nil
}
