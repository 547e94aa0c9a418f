package directory

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/store"
)

// Service resolves long-term public keys through a local pin cache backed by
// the relay.
type Service struct {
	relay domain.RelayClient
	pins  *store.PeerKeys
	log   zerolog.Logger
}

// New returns a directory service. relay may be nil for offline use, in which
// case only pinned keys resolve.
func New(relay domain.RelayClient, pins *store.PeerKeys, log zerolog.Logger) *Service {
	return &Service{
		relay: relay,
		pins:  pins,
		log:   log.With().Str("component", "directory").Logger(),
	}
}

// LongTermPublicKey returns the pinned key for user, fetching and pinning it
// from the relay on first use.
func (s *Service) LongTermPublicKey(ctx context.Context, user domain.UserID) (domain.PublicKey, error) {
	pk, ok, err := s.pins.Get(user)
	if err != nil {
		return domain.PublicKey{}, err
	}
	if ok {
		return pk, nil
	}
	if s.relay == nil {
		return domain.PublicKey{}, oops.Wrapf(domain.ErrUnknownPeerPublicKey, "no pinned key for %q", user)
	}

	pk, err = s.relay.FetchPublicKey(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPeerPublicKey) {
			return domain.PublicKey{}, err
		}
		return domain.PublicKey{}, oops.Wrapf(err, "fetch key for %q", user)
	}
	if _, err := crypto.ImportPublicKey(pk); err != nil {
		return domain.PublicKey{}, oops.Wrapf(err, "relay key for %q", user)
	}
	if err := s.pins.Put(user, pk); err != nil {
		return domain.PublicKey{}, err
	}
	s.log.Info().
		Str("peer", user.String()).
		Str("fingerprint", crypto.Fingerprint(pk).String()).
		Msg("pinned peer key; verify the fingerprint out of band")
	return pk, nil
}

// Publish registers id's public key with the relay and pins it locally.
func (s *Service) Publish(ctx context.Context, id domain.Identity) error {
	if s.relay == nil {
		return oops.Errorf("publish: no relay configured")
	}
	if err := s.relay.PublishPublicKey(ctx, id.UserID, id.SigningPublic); err != nil {
		return oops.Wrapf(err, "publish key for %q", id.UserID)
	}
	if err := s.pins.Put(id.UserID, id.SigningPublic); err != nil {
		return err
	}
	s.log.Info().
		Str("user", id.UserID.String()).
		Str("fingerprint", crypto.Fingerprint(id.SigningPublic).String()).
		Msg("public key published")
	return nil
}

// Forget drops the pinned key for user so the next lookup refetches it.
func (s *Service) Forget(user domain.UserID) {
	if err := s.pins.Delete(user); err != nil {
		s.log.Warn().Err(err).Str("peer", user.String()).Msg("forget pinned key")
		return
	}
	s.log.Info().Str("peer", user.String()).Msg("pinned key forgotten")
}

// Compile-time assertion that Service implements domain.DirectoryService.
var _ domain.DirectoryService = (*Service)(nil)
