package codec

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/replay"
	"parley/internal/sessions"
)

// DefaultChunkSize is the plaintext size of one file chunk.
const DefaultChunkSize = 1 << 20

// Config wires a Codec. Self, Sessions and Guard are required.
type Config struct {
	Self      domain.UserID
	Sessions  *sessions.Directory
	Guard     *replay.Guard
	ChunkSize int
	Now       func() time.Time
	NewNonce  func() (string, error)
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
}

// Codec encrypts and decrypts application payloads.
type Codec struct {
	self      domain.UserID
	sessions  *sessions.Directory
	guard     *replay.Guard
	chunkSize int
	now       func() time.Time
	newNonce  func() (string, error)
	log       zerolog.Logger
	metrics   *observability.Metrics
}

// Result is the outcome of DecryptMessage. A skipped message was stale,
// duplicated or out of order; Reason says which.
type Result struct {
	Message *domain.DecryptedMessage
	Skipped bool
	Reason  error
}

// New returns a Codec for cfg.
func New(cfg Config) (*Codec, error) {
	switch {
	case cfg.Self == "":
		return nil, errors.New("codec: self user id required")
	case cfg.Sessions == nil:
		return nil, errors.New("codec: session directory required")
	case cfg.Guard == nil:
		return nil, errors.New("codec: replay guard required")
	case cfg.ChunkSize < 0:
		return nil, errors.New("codec: chunk size must not be negative")
	}
	c := &Codec{
		self:      cfg.Self,
		sessions:  cfg.Sessions,
		guard:     cfg.Guard,
		chunkSize: cfg.ChunkSize,
		now:       cfg.Now,
		newNonce:  cfg.NewNonce,
		log:       cfg.Logger.With().Str("component", "codec").Logger(),
		metrics:   cfg.Metrics,
	}
	if c.chunkSize == 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newNonce == nil {
		c.newNonce = crypto.NewNonce
	}
	return c, nil
}

// ChunkSize returns the plaintext chunk size used by EncryptFile.
func (c *Codec) ChunkSize() int { return c.chunkSize }
