package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/services/identity"
	"parley/internal/store"
)

const goodPass = "Correct-Horse-42"

func TestGenerateAndLoad(t *testing.T) {
	svc := identity.New(store.NewKeyStore(store.NewMemory()))

	id, fp, err := svc.GenerateIdentity("alice", goodPass)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), id.UserID)
	assert.Equal(t, crypto.Fingerprint(id.SigningPublic), fp)

	loaded, err := svc.LoadIdentity("alice", goodPass)
	require.NoError(t, err)
	assert.True(t, id.SigningPublic.Equal(loaded.SigningPublic))
	assert.True(t, id.SigningPrivate.Equal(loaded.SigningPrivate))

	got, err := svc.FingerprintIdentity("alice", goodPass)
	require.NoError(t, err)
	assert.Equal(t, fp, got)

	ok, err := svc.Exists("alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWrongPassphrase(t *testing.T) {
	svc := identity.New(store.NewKeyStore(store.NewMemory()))
	_, _, err := svc.GenerateIdentity("alice", goodPass)
	require.NoError(t, err)

	_, err = svc.LoadIdentity("alice", "Wrong-Horse-42!")
	assert.ErrorIs(t, err, domain.ErrWrongPasswordOrCorrupt)
}

func TestPassphrasePolicy(t *testing.T) {
	svc := identity.New(store.NewKeyStore(store.NewMemory()))
	for _, pass := range []string{
		"short1!A",
		"alllowercase123!",
		"ALLUPPERCASE123!",
		"NoDigitsHere!!",
		"NoSymbols12345",
	} {
		_, _, err := svc.GenerateIdentity("alice", pass)
		assert.ErrorIs(t, err, identity.ErrWeakPassphrase, pass)
	}
}

func TestUserIDRequired(t *testing.T) {
	svc := identity.New(store.NewKeyStore(store.NewMemory()))
	_, _, err := svc.GenerateIdentity("", goodPass)
	assert.ErrorIs(t, err, identity.ErrNoUserID)
}

func TestRegenerateReplacesKey(t *testing.T) {
	svc := identity.New(store.NewKeyStore(store.NewMemory()))
	first, _, err := svc.GenerateIdentity("alice", goodPass)
	require.NoError(t, err)
	second, _, err := svc.GenerateIdentity("alice", goodPass)
	require.NoError(t, err)
	assert.False(t, first.SigningPublic.Equal(second.SigningPublic))

	loaded, err := svc.LoadIdentity("alice", goodPass)
	require.NoError(t, err)
	assert.True(t, second.SigningPublic.Equal(loaded.SigningPublic))
}
