package domain

import (
	"errors"

	types "parley/internal/domain/types"
)

// Protocol failures. Callers classify with errors.Is; producers may wrap these
// with context.
var (
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrTimestampExpired        = errors.New("timestamp outside freshness window")
	ErrNonceReplayed           = errors.New("nonce replayed")
	ErrSequenceOutOfOrder      = errors.New("sequence number out of order")
	ErrEphemeralKeyUnavailable = errors.New("ephemeral private key unavailable")
	ErrKeyConfirmationFailed   = errors.New("key confirmation failed")
	ErrDecryptionFailed        = errors.New("decryption failed")
	ErrWrongPasswordOrCorrupt  = errors.New("wrong password or corrupted key material")
	ErrUnknownPeerPublicKey    = errors.New("no public key on record for peer")
	ErrSelfHandshakeRejected   = errors.New("cannot handshake with self")

	ErrNonceMismatch     = errors.New("echoed nonce does not match")
	ErrUnexpectedMessage = errors.New("unexpected handshake message for current state")
	ErrMisdirected       = errors.New("message addressed to another user")
	ErrNoSession         = errors.New("no established session with peer")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrIncompleteFile    = errors.New("file record is incomplete or inconsistent")
	ErrMalformedEnvelope = types.ErrMalformedEnvelope
)
