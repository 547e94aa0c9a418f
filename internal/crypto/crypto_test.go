package crypto_test

import (
	"bytes"
	"crypto/elliptic"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/crypto"
	"parley/internal/domain"
)

func TestPublicKeyRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)

	exported, err := crypto.ExportPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, domain.CurveP256, exported.Curve)
	assert.Len(t, exported.X, 32)
	assert.Len(t, exported.Y, 32)

	imported, err := crypto.ImportPublicKey(exported)
	require.NoError(t, err)
	assert.True(t, imported.Equal(&priv.PublicKey))
}

func TestImportPublicKeyRejectsBadInput(t *testing.T) {
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	good, err := crypto.ExportPublicKey(&priv.PublicKey)
	require.NoError(t, err)

	wrongCurve := good
	wrongCurve.Curve = "P-384"

	short := good
	short.X = good.X[1:]

	offCurve := domain.PublicKey{Curve: domain.CurveP256, X: bytes.Clone(good.X), Y: bytes.Clone(good.Y)}
	offCurve.Y[31] ^= 0x01

	for name, pk := range map[string]domain.PublicKey{
		"wrong curve": wrongCurve,
		"short x":     short,
		"off curve":   offCurve,
		"empty":       {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := crypto.ImportPublicKey(pk)
			assert.ErrorIs(t, err, domain.ErrInvalidPublicKey)
		})
	}
}

func TestExportPublicKeyRejectsOtherCurves(t *testing.T) {
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	pub := priv.PublicKey
	pub.Curve = elliptic.P384()
	_, err = crypto.ExportPublicKey(&pub)
	assert.ErrorIs(t, err, domain.ErrInvalidPublicKey)
}

func TestSharedSecretAgrees(t *testing.T) {
	a, err := crypto.GenerateEphemeralKeyPair()
	require.NoError(t, err)
	b, err := crypto.GenerateEphemeralKeyPair()
	require.NoError(t, err)

	bPub, err := crypto.ImportEphemeralPublicKey(crypto.ExportEphemeralPublicKey(b.PublicKey()))
	require.NoError(t, err)
	aPub, err := crypto.ImportEphemeralPublicKey(crypto.ExportEphemeralPublicKey(a.PublicKey()))
	require.NoError(t, err)

	s1, err := crypto.SharedSecret(a, bPub)
	require.NoError(t, err)
	s2, err := crypto.SharedSecret(b, aPub)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	_, err = crypto.SharedSecret(nil, bPub)
	assert.ErrorIs(t, err, domain.ErrEphemeralKeyUnavailable)
}

func TestDeriveSessionKeyBindsInputs(t *testing.T) {
	shared := bytes.Repeat([]byte{7}, 32)

	k1, err := crypto.DeriveSessionKey(shared, "A1", "B1", "alice", "bob")
	require.NoError(t, err)
	k2, err := crypto.DeriveSessionKey(shared, "A1", "B1", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	swapped, err := crypto.DeriveSessionKey(shared, "A1", "B1", "bob", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, k1, swapped)

	otherNonce, err := crypto.DeriveSessionKey(shared, "A2", "B1", "alice", "bob")
	require.NoError(t, err)
	assert.NotEqual(t, k1, otherNonce)
}

func TestDeriveSubkeySeparatesPurposes(t *testing.T) {
	key := bytes.Repeat([]byte{9}, 32)

	a, err := crypto.DeriveSubkey(key, "parley/file-digest/v1", "f1")
	require.NoError(t, err)
	again, err := crypto.DeriveSubkey(key, "parley/file-digest/v1", "f1")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	otherFile, err := crypto.DeriveSubkey(key, "parley/file-digest/v1", "f2")
	require.NoError(t, err)
	assert.NotEqual(t, a, otherFile)

	otherLabel, err := crypto.DeriveSubkey(key, "parley/other/v1", "f1")
	require.NoError(t, err)
	assert.NotEqual(t, a, otherLabel)
	assert.NotEqual(t, key, a[:])
}

func TestEncryptDecrypt(t *testing.T) {
	key := bytes.Repeat([]byte{1}, crypto.KeySize)
	aad := []byte("meta")

	s, err := crypto.Encrypt(key, []byte("hello"), aad)
	require.NoError(t, err)
	assert.Len(t, s.IV, crypto.IVSize)
	assert.Len(t, s.AuthTag, crypto.TagSize)
	assert.Len(t, s.Ciphertext, 5)

	pt, err := crypto.Decrypt(key, s, aad)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))

	again, err := crypto.Encrypt(key, []byte("hello"), aad)
	require.NoError(t, err)
	assert.NotEqual(t, s.IV, again.IV, "IV must be fresh per call")
}

func TestDecryptFailsClosed(t *testing.T) {
	key := bytes.Repeat([]byte{1}, crypto.KeySize)
	s, err := crypto.Encrypt(key, []byte("hello"), nil)
	require.NoError(t, err)

	tamperedCT := s
	tamperedCT.Ciphertext = bytes.Clone(s.Ciphertext)
	tamperedCT.Ciphertext[0] ^= 0xff

	tamperedTag := s
	tamperedTag.AuthTag = bytes.Clone(s.AuthTag)
	tamperedTag.AuthTag[0] ^= 0xff

	shortIV := s
	shortIV.IV = s.IV[:8]

	for name, in := range map[string]domain.Sealed{
		"ciphertext": tamperedCT,
		"tag":        tamperedTag,
		"iv":         shortIV,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := crypto.Decrypt(key, in, nil)
			assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
		})
	}

	_, err = crypto.Decrypt(key, s, []byte("other aad"))
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)

	wrongKey := bytes.Repeat([]byte{2}, crypto.KeySize)
	_, err = crypto.Decrypt(wrongKey, s, nil)
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
}

func TestWrapUnwrap(t *testing.T) {
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)

	blob, err := crypto.WrapPrivateKey(priv, "correct horse")
	require.NoError(t, err)
	assert.Len(t, blob.Salt, 16)
	assert.Equal(t, crypto.WrapIterations, blob.Iterations)

	got, err := crypto.UnwrapPrivateKey(blob, "correct horse")
	require.NoError(t, err)
	assert.True(t, got.Equal(priv))

	_, err = crypto.UnwrapPrivateKey(blob, "wrong")
	if !errors.Is(err, domain.ErrWrongPasswordOrCorrupt) {
		t.Fatalf("wrong password: got %v", err)
	}

	blob.Ciphertext[3] ^= 0x01
	_, err = crypto.UnwrapPrivateKey(blob, "correct horse")
	assert.ErrorIs(t, err, domain.ErrWrongPasswordOrCorrupt)
}

func TestWrapUsesFreshSalt(t *testing.T) {
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	a, err := crypto.WrapPrivateKey(priv, "pw")
	require.NoError(t, err)
	b, err := crypto.WrapPrivateKey(priv, "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a.Salt, b.Salt)
}

func TestNonceAndFingerprint(t *testing.T) {
	n1, err := crypto.NewNonce()
	require.NoError(t, err)
	n2, err := crypto.NewNonce()
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
	assert.Len(t, n1, 44)

	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	pub, err := crypto.ExportPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	fp := crypto.Fingerprint(pub)
	assert.Len(t, fp.String(), 20)
	assert.Equal(t, fp, crypto.Fingerprint(pub))
}
