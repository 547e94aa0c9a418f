package message

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"parley/internal/domain"
	"parley/internal/protocol/codec"
)

// Service sends and receives messages over the relay using established
// session keys.
//
// High-level flow:
//   - Send: seal the plaintext under the peer's session key with the next
//     sequence number and post it via the relay.
//   - Receive: fetch envelopes, dispatch each one by kind, then ack them all.
//     Every envelope yields exactly one Inbound describing what happened.
type Service struct {
	self     domain.UserID
	codec    *codec.Codec
	sessions domain.SessionService
	relay    domain.RelayClient
	now      func() time.Time
	log      zerolog.Logger
}

// New constructs a message service.
func New(
	self domain.UserID,
	c *codec.Codec,
	sessions domain.SessionService,
	relay domain.RelayClient,
	log zerolog.Logger,
) *Service {
	return &Service{
		self:     self,
		codec:    c,
		sessions: sessions,
		relay:    relay,
		now:      time.Now,
		log:      log.With().Str("component", "message").Logger(),
	}
}

// Send encrypts plaintext for peer and posts it.
func (s *Service) Send(ctx context.Context, peer domain.UserID, plaintext []byte) error {
	msg, err := s.codec.EncryptMessage(peer, plaintext)
	if err != nil {
		return err
	}
	env := s.envelope(domain.KindMessage, peer)
	env.Message = &msg
	if err := s.relay.SendEnvelope(ctx, env); err != nil {
		return oops.Wrapf(err, "send message to %q", peer)
	}
	s.log.Debug().Str("peer", peer.String()).Uint64("seq", msg.SequenceNumber).Msg("message sent")
	return nil
}

// SendFile encrypts data for peer, posts it and returns the file id.
func (s *Service) SendFile(
	ctx context.Context,
	peer domain.UserID,
	name, fileType string,
	data []byte,
) (string, error) {
	rec, err := s.codec.EncryptFile(peer, name, fileType, data)
	if err != nil {
		return "", err
	}
	env := s.envelope(domain.KindFile, peer)
	env.File = &rec
	if err := s.relay.SendEnvelope(ctx, env); err != nil {
		return "", oops.Wrapf(err, "send file to %q", peer)
	}
	s.log.Info().Str("peer", peer.String()).Str("file_id", rec.FileID).
		Int64("size", rec.FileSize).Msg("file sent")
	return rec.FileID, nil
}

// Receive fetches up to limit envelopes, processes them and acks them.
//
// Failures are per envelope and reported in the returned Inbound values;
// redelivering a forged or corrupt envelope would fail the same way, so
// everything fetched is acked. The error is reserved for relay failures.
func (s *Service) Receive(ctx context.Context, limit int) ([]domain.Inbound, error) {
	envs, err := s.relay.FetchEnvelopes(ctx, s.self, limit)
	if err != nil {
		return nil, oops.Wrapf(err, "fetch envelopes")
	}

	out := make([]domain.Inbound, 0, len(envs))
	for _, env := range envs {
		in := s.process(ctx, env)
		s.logInbound(in)
		out = append(out, in)
	}

	if len(envs) > 0 {
		if err := s.relay.AckEnvelopes(ctx, s.self, len(envs)); err != nil {
			return out, oops.Wrapf(err, "ack %d envelopes", len(envs))
		}
	}
	return out, nil
}

func (s *Service) process(ctx context.Context, env domain.Envelope) domain.Inbound {
	in := domain.Inbound{EnvelopeID: env.ID, Kind: env.Kind, From: env.From}
	if err := env.Validate(); err != nil {
		in.Err = err
		return in
	}
	if env.To != s.self {
		in.Err = fmt.Errorf("%w: envelope for %q", domain.ErrMisdirected, env.To)
		return in
	}
	if err := consistent(env); err != nil {
		in.Err = err
		return in
	}

	switch {
	case env.Kind.IsHandshake():
		in.Err = s.sessions.Handle(ctx, env)

	case env.Kind == domain.KindMessage:
		res, err := s.codec.DecryptMessage(*env.Message)
		switch {
		case err != nil:
			in.Err = err
		case res.Skipped:
			in.Skipped, in.Reason = true, res.Reason
		default:
			in.Message = res.Message
		}

	case env.Kind == domain.KindFile:
		f, err := s.codec.DecryptFile(*env.File)
		if err != nil {
			in.Err = err
		} else {
			in.File = &f
		}
	}
	return in
}

// consistent checks that the envelope's routing matches the sender and
// receiver inside its payload.
func consistent(env domain.Envelope) error {
	var from, to domain.UserID
	switch env.Kind {
	case domain.KindInit:
		from, to = env.Init.SenderID, env.Init.ReceiverID
	case domain.KindResponse:
		from, to = env.Response.SenderID, env.Response.ReceiverID
	case domain.KindConfirm:
		from, to = env.Confirm.SenderID, env.Confirm.ReceiverID
	case domain.KindAck:
		from, to = env.Ack.SenderID, env.Ack.ReceiverID
	case domain.KindMessage:
		from, to = env.Message.SenderID, env.Message.ReceiverID
	case domain.KindFile:
		from, to = env.File.SenderID, env.File.ReceiverID
	}
	if from != env.From || to != env.To {
		return fmt.Errorf("%w: routing %s->%s disagrees with payload %s->%s",
			domain.ErrMalformedEnvelope, env.From, env.To, from, to)
	}
	return nil
}

func (s *Service) logInbound(in domain.Inbound) {
	ev := s.log.Debug()
	switch {
	case in.Err != nil:
		ev = s.log.Warn().Err(in.Err)
	case in.Skipped:
		ev = s.log.Info().AnErr("reason", in.Reason)
	}
	ev.Str("id", in.EnvelopeID).Str("kind", string(in.Kind)).Str("from", in.From.String()).
		Bool("skipped", in.Skipped).Msg("envelope processed")
}

func (s *Service) envelope(kind domain.Kind, to domain.UserID) domain.Envelope {
	return domain.Envelope{Kind: kind, From: s.self, To: to, Timestamp: s.now().UnixMilli()}
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
