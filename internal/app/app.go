package app

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"parley/internal/domain"
	"parley/internal/protocol/codec"
	"parley/internal/protocol/handshake"
	"parley/internal/replay"
	messagesvc "parley/internal/services/message"
	sessionsvc "parley/internal/services/session"
	"parley/internal/sessions"
	"parley/internal/store"
)

var (
	// ErrNoRelay is returned when an operation needs a relay and none is configured.
	ErrNoRelay = errors.New("no relay configured")
	// ErrHandshakeFailed is returned by Connect when the key exchange was abandoned.
	ErrHandshakeFailed = errors.New("handshake failed")
)

// App is an unlocked identity with live session and message services.
type App struct {
	*Wire

	Self     domain.Identity
	Guard    *replay.Guard
	Codec    *codec.Codec
	Sessions domain.SessionService
	Messages domain.MessageService
}

// Unlock loads the configured identity with passphrase and builds the
// session machinery around it.
func (w *Wire) Unlock(passphrase string) (*App, error) {
	if w.Relay == nil {
		return nil, ErrNoRelay
	}
	self, err := w.Identity.LoadIdentity(w.Config.UserID, passphrase)
	if err != nil {
		return nil, err
	}

	log := w.Log.With().Str("user", self.UserID.String()).Logger()
	guard, err := replay.New(replay.Options{
		Window:  w.Config.Handshake.FreshnessWindow,
		Journal: store.NewReplayJournal(w.KV, self.UserID),
		Logger:  log,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "restore replay state")
	}

	dir := sessions.NewDirectory(log)
	manager, err := handshake.NewManager(handshake.Config{
		Self:                         self.UserID,
		SigningKey:                   self.SigningPrivate,
		Directory:                    w.Directory,
		Sessions:                     dir,
		Guard:                        guard,
		DisableSignatureVerification: !w.Config.Handshake.RequireSignatures,
		Logger:                       log,
		Metrics:                      w.Metrics,
	})
	if err != nil {
		return nil, err
	}
	c, err := codec.New(codec.Config{
		Self:      self.UserID,
		Sessions:  dir,
		Guard:     guard,
		ChunkSize: w.Config.Files.ChunkSize,
		Logger:    log,
		Metrics:   w.Metrics,
	})
	if err != nil {
		return nil, err
	}

	ss := sessionsvc.New(manager, w.Relay, log)
	return &App{
		Wire:     w,
		Self:     self,
		Guard:    guard,
		Codec:    c,
		Sessions: ss,
		Messages: messagesvc.New(self.UserID, c, ss, w.Relay, log),
	}, nil
}

// Register publishes the local public key to the relay.
func (a *App) Register(ctx context.Context) error {
	return a.Directory.Publish(ctx, a.Self)
}

// Connect starts a handshake with peer and polls the relay every interval
// until it completes, fails or ctx ends. Envelopes that arrive meanwhile are
// passed to handle, which may be nil.
func (a *App) Connect(
	ctx context.Context,
	peer domain.UserID,
	interval time.Duration,
	handle func(domain.Inbound),
) error {
	// Resolve (and pin) the peer key up front so an unknown peer fails fast.
	if _, err := a.Directory.LongTermPublicKey(ctx, peer); err != nil {
		return err
	}
	if err := a.Sessions.Initiate(ctx, peer); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		in, err := a.Messages.Receive(ctx, 0)
		if ctx.Err() != nil {
			a.Sessions.Reset(peer)
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		var cause error
		for _, i := range in {
			if i.From == peer && i.Kind.IsHandshake() && i.Err != nil {
				cause = i.Err
			}
			if handle != nil {
				handle(i)
			}
		}

		switch a.Sessions.State(peer) {
		case domain.StateEstablished:
			return nil
		case domain.StateIdle:
			if cause == nil {
				return oops.Wrapf(ErrHandshakeFailed, "with %q", peer)
			}
			return oops.Wrapf(ErrHandshakeFailed, "with %q: %v", peer, cause)
		}

		select {
		case <-ctx.Done():
			a.Sessions.Reset(peer)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Listen polls the relay every interval until ctx ends, passing every
// processed envelope to handle and expiring handshakes older than the
// configured pending TTL.
func (a *App) Listen(ctx context.Context, interval time.Duration, handle func(domain.Inbound)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		in, err := a.Messages.Receive(ctx, 0)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			a.Log.Warn().Err(err).Msg("receive failed; retrying")
		}
		for _, i := range in {
			handle(i)
		}
		if ttl := a.Config.Handshake.PendingTTL; ttl > 0 {
			a.Sessions.Expire(ttl)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Logout drops all sessions and pending handshakes.
func (a *App) Logout() {
	a.Sessions.Logout()
}
