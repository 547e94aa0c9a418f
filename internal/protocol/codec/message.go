package codec

import (
	"fmt"
	"time"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/protocol/transcript"
	"parley/internal/replay"
	"parley/internal/util/memzero"
)

// EncryptMessage seals plaintext for peer under the established session key,
// taking the next outgoing sequence number.
func (c *Codec) EncryptMessage(peer domain.UserID, plaintext []byte) (domain.EncryptedMessage, error) {
	s, seq, err := c.sessions.Next(peer)
	if err != nil {
		return domain.EncryptedMessage{}, err
	}
	defer memzero.Zero(s.Key[:])

	nonce, err := c.newNonce()
	if err != nil {
		return domain.EncryptedMessage{}, err
	}
	msg := domain.EncryptedMessage{
		SenderID:       c.self,
		ReceiverID:     peer,
		Nonce:          nonce,
		Timestamp:      c.now().UnixMilli(),
		SequenceNumber: seq,
	}
	sealed, err := crypto.Encrypt(s.Key[:], plaintext, transcript.Message(msg))
	if err != nil {
		return domain.EncryptedMessage{}, fmt.Errorf("encrypt message: %w", err)
	}
	msg.Sealed = sealed
	c.metrics.Message("out")
	return msg, nil
}

// DecryptMessage authenticates and opens msg. Replayed, stale and
// out-of-order messages come back as a skipped Result rather than an error.
func (c *Codec) DecryptMessage(msg domain.EncryptedMessage) (Result, error) {
	if msg.ReceiverID != c.self {
		return Result{}, fmt.Errorf("%w: for %q", domain.ErrMisdirected, msg.ReceiverID)
	}
	peer := msg.SenderID
	s, ok := c.sessions.Get(peer)
	if !ok {
		return Result{}, fmt.Errorf("%w: with %q", domain.ErrNoSession, peer)
	}
	defer memzero.Zero(s.Key[:])

	check := replay.Check{
		Peer:            peer,
		Nonce:           msg.Nonce,
		Timestamp:       time.UnixMilli(msg.Timestamp),
		Sequence:        msg.SequenceNumber,
		RequireSequence: true,
	}
	if v := c.guard.Check(check); v != replay.Accepted {
		return c.skip(peer, v), nil
	}

	pt, err := crypto.Decrypt(s.Key[:], msg.Sealed, transcript.Message(msg))
	if err != nil {
		c.metrics.DecryptFailed()
		observability.SecurityEvent(c.log, observability.EventDecryptionFailed, peer,
			observability.SeverityHigh, err)
		return Result{}, err
	}

	// A concurrent delivery of the same message may have won the race.
	if v := c.guard.CheckAndRecord(check); v != replay.Accepted {
		memzero.Zero(pt)
		return c.skip(peer, v), nil
	}

	c.metrics.Message("in")
	return Result{Message: &domain.DecryptedMessage{
		From:      peer,
		To:        c.self,
		Plaintext: pt,
		Sequence:  msg.SequenceNumber,
		Timestamp: msg.Timestamp,
	}}, nil
}

func (c *Codec) skip(peer domain.UserID, v replay.Verdict) Result {
	c.metrics.ReplayRejected(v.String())
	observability.SecurityEvent(c.log, observability.EventReplayRejected, peer,
		observability.SeverityMedium, v.Err())
	return Result{Skipped: true, Reason: v.Err()}
}
