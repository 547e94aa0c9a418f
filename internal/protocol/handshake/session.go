package handshake

import (
	"crypto/ecdh"
	"time"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/util/memzero"
)

const (
	confirmPrefix = "KEY_CONFIRMED_"
	ackPrefix     = "KEY_ACKNOWLEDGED_"
)

// handshakeSession is the pending exchange with one peer.
type handshakeSession struct {
	peer          domain.UserID
	role          domain.Role
	state         domain.HandshakeState
	ownNonce      string
	peerNonce     string
	ownEphemeral  *ecdh.PrivateKey
	peerEphemeral domain.PublicKey
	pendingKey    *domain.SessionKey
	createdAt     time.Time
}

// nonces returns (nI, nR) regardless of role.
func (s *handshakeSession) nonces() (string, string) {
	if s.role == domain.RoleInitiator {
		return s.ownNonce, s.peerNonce
	}
	return s.peerNonce, s.ownNonce
}

// deriveKey consumes the ephemeral private key and stores the session key.
func (s *handshakeSession) deriveKey(self domain.UserID) error {
	if s.ownEphemeral == nil {
		return domain.ErrEphemeralKeyUnavailable
	}
	peerPub, err := crypto.ImportEphemeralPublicKey(s.peerEphemeral)
	if err != nil {
		return err
	}
	shared, err := crypto.SharedSecret(s.ownEphemeral, peerPub)
	s.ownEphemeral = nil
	if err != nil {
		return err
	}
	defer memzero.Zero(shared)

	initiator, responder := self, s.peer
	if s.role == domain.RoleResponder {
		initiator, responder = s.peer, self
	}
	nI, nR := s.nonces()
	key, err := crypto.DeriveSessionKey(shared, nI, nR, initiator, responder)
	if err != nil {
		return err
	}
	s.pendingKey = &key
	return nil
}

// discard drops all secret material held by the handshake.
func (s *handshakeSession) discard() {
	s.ownEphemeral = nil
	if s.pendingKey != nil {
		memzero.Zero(s.pendingKey[:])
		s.pendingKey = nil
	}
	s.state = domain.StateIdle
}

func (s *handshakeSession) session(now time.Time) domain.Session {
	nI, nR := s.nonces()
	return domain.Session{
		Peer:           s.peer,
		Key:            *s.pendingKey,
		Role:           s.role,
		NonceInitiator: nI,
		NonceResponder: nR,
		EstablishedAt:  now,
	}
}
