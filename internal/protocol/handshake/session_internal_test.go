package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/replay"
	"parley/internal/sessions"
)

type staticDirectory map[domain.UserID]domain.PublicKey

func (d staticDirectory) LongTermPublicKey(_ context.Context, u domain.UserID) (domain.PublicKey, error) {
	pk, ok := d[u]
	if !ok {
		return domain.PublicKey{}, domain.ErrUnknownPeerPublicKey
	}
	return pk, nil
}

func newTestManager(t *testing.T, self domain.UserID, dir staticDirectory) *Manager {
	t.Helper()
	key, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	pub, err := crypto.ExportPublicKey(&key.PublicKey)
	require.NoError(t, err)
	dir[self] = pub

	guard, err := replay.New(replay.Options{})
	require.NoError(t, err)
	m, err := NewManager(Config{
		Self:       self,
		SigningKey: key,
		Directory:  dir,
		Sessions:   sessions.NewDirectory(zerolog.Nop()),
		Guard:      guard,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return m
}

func TestMissingEphemeralAbortsHandshake(t *testing.T) {
	dir := staticDirectory{}
	alice := newTestManager(t, "alice", dir)
	bob := newTestManager(t, "bob", dir)
	ctx := context.Background()

	init, err := alice.Initiate(ctx, "bob")
	require.NoError(t, err)
	resp, err := bob.HandleInit(ctx, init)
	require.NoError(t, err)

	s := alice.slot("bob")
	s.mu.Lock()
	s.hs.ownEphemeral = nil
	s.mu.Unlock()

	_, err = alice.HandleResponse(ctx, *resp)
	assert.ErrorIs(t, err, domain.ErrEphemeralKeyUnavailable)
	assert.Equal(t, domain.StateIdle, alice.State("bob"))
}

func TestEphemeralDroppedOnceConsumed(t *testing.T) {
	dir := staticDirectory{}
	alice := newTestManager(t, "alice", dir)
	bob := newTestManager(t, "bob", dir)
	ctx := context.Background()

	init, err := alice.Initiate(ctx, "bob")
	require.NoError(t, err)
	resp, err := bob.HandleInit(ctx, init)
	require.NoError(t, err)

	bs := bob.slot("alice")
	assert.Nil(t, bs.hs.ownEphemeral, "responder key is consumed at derivation")
	assert.NotNil(t, bs.hs.pendingKey)

	_, err = alice.HandleResponse(ctx, *resp)
	require.NoError(t, err)
	as := alice.slot("bob")
	assert.Nil(t, as.hs.ownEphemeral)
}

func TestDiscardWipesPendingKey(t *testing.T) {
	key := domain.SessionKey{1, 2, 3}
	hs := &handshakeSession{pendingKey: &key, createdAt: time.Now()}
	hs.discard()
	assert.Nil(t, hs.pendingKey)
	assert.Equal(t, domain.SessionKey{}, key)
	assert.Equal(t, domain.StateIdle, hs.state)
}
