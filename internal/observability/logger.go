package observability

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/domain"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	Level  string
	Format string // "json" or "console"
	Out    io.Writer
}

// NewLogger creates a structured logger tagged with service and host.
func NewLogger(service string, opts LogOptions) (zerolog.Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}
	switch opts.Format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want json or console", opts.Format)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("host", hostname()).
		Logger(), nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// Severity grades a security event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Security event names.
const (
	EventSignatureInvalid     = "signature_invalid"
	EventReplayRejected       = "replay_rejected"
	EventDecryptionFailed     = "decryption_failed"
	EventConfirmationFailed   = "key_confirmation_failed"
	EventUnknownPeerKey       = "unknown_peer_key"
	EventHandshakeEstablished = "handshake_established"
	EventSignaturesDisabled   = "signature_verification_disabled"
)

// SecurityEvent records a security-relevant occurrence. High severity is
// logged at error level, medium at warn and low at info.
func SecurityEvent(log zerolog.Logger, event string, user domain.UserID, sev Severity, err error) {
	var ev *zerolog.Event
	switch sev {
	case SeverityHigh:
		ev = log.Error()
	case SeverityMedium:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev = ev.Str("security_event", event).Str("user", user.String()).Str("severity", string(sev))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("security event")
}

// Reason maps an error to a short metric label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrTimestampExpired):
		return "timestamp_expired"
	case errors.Is(err, domain.ErrNonceReplayed):
		return "nonce_replayed"
	case errors.Is(err, domain.ErrSequenceOutOfOrder):
		return "sequence_out_of_order"
	case errors.Is(err, domain.ErrEphemeralKeyUnavailable):
		return "ephemeral_key_unavailable"
	case errors.Is(err, domain.ErrKeyConfirmationFailed):
		return "key_confirmation_failed"
	case errors.Is(err, domain.ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, domain.ErrUnknownPeerPublicKey):
		return "unknown_peer_public_key"
	case errors.Is(err, domain.ErrSelfHandshakeRejected):
		return "self_handshake"
	case errors.Is(err, domain.ErrNonceMismatch):
		return "nonce_mismatch"
	case errors.Is(err, domain.ErrUnexpectedMessage):
		return "unexpected_message"
	case errors.Is(err, domain.ErrMisdirected):
		return "misdirected"
	case errors.Is(err, domain.ErrInvalidPublicKey):
		return "invalid_public_key"
	}
	return "other"
}
