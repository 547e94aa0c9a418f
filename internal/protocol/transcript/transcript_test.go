package transcript_test

import (
	"bytes"
	"crypto/ecdsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/protocol/transcript"
)

func makeInit(t *testing.T) (*ecdsa.PrivateKey, domain.InitMessage) {
	t.Helper()
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	lt, err := crypto.ExportPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	eph, err := crypto.GenerateEphemeralKeyPair()
	require.NoError(t, err)

	m := domain.InitMessage{
		SenderID:                 "alice",
		ReceiverID:               "bob",
		SenderLongTermPublicKey:  lt,
		SenderEphemeralPublicKey: crypto.ExportEphemeralPublicKey(eph.PublicKey()),
		Nonce:                    "A1",
		Timestamp:                1_700_000_000_000,
	}
	require.NoError(t, transcript.SignInit(priv, &m))
	return priv, m
}

func TestEncodingIsDeterministic(t *testing.T) {
	_, m := makeInit(t)
	assert.Equal(t, transcript.Init(m), transcript.Init(m))

	// The signature is not part of what is signed.
	m2 := m
	m2.Signature = []byte("other")
	assert.Equal(t, transcript.Init(m), transcript.Init(m2))
}

func TestEncodingSeparatesFields(t *testing.T) {
	a := transcript.NewEncoder("t").String("x", "ab").String("y", "c").Encoded()
	b := transcript.NewEncoder("t").String("x", "a").String("y", "bc").Encoded()
	assert.False(t, bytes.Equal(a, b))

	swapped := transcript.NewEncoder("t").String("y", "c").String("x", "ab").Encoded()
	assert.False(t, bytes.Equal(a, swapped))
}

func TestInitAndResponseLabelsDiffer(t *testing.T) {
	_, m := makeInit(t)
	r := domain.ResponseMessage{
		SenderID:                 m.SenderID,
		ReceiverID:               m.ReceiverID,
		SenderLongTermPublicKey:  m.SenderLongTermPublicKey,
		SenderEphemeralPublicKey: m.SenderEphemeralPublicKey,
		NonceInitiator:           m.Nonce,
		Timestamp:                m.Timestamp,
	}
	assert.NotEqual(t, transcript.Init(m), transcript.Response(r))
}

func TestVerifyInit(t *testing.T) {
	_, m := makeInit(t)
	require.NoError(t, transcript.VerifyInit(m))
}

func TestVerifyInitDetectsTampering(t *testing.T) {
	_, m := makeInit(t)
	other, err := crypto.GenerateEphemeralKeyPair()
	require.NoError(t, err)

	cases := map[string]func(*domain.InitMessage){
		"sender":    func(m *domain.InitMessage) { m.SenderID = "mallory" },
		"receiver":  func(m *domain.InitMessage) { m.ReceiverID = "carol" },
		"nonce":     func(m *domain.InitMessage) { m.Nonce = "A2" },
		"timestamp": func(m *domain.InitMessage) { m.Timestamp++ },
		"ephemeral": func(m *domain.InitMessage) {
			m.SenderEphemeralPublicKey = crypto.ExportEphemeralPublicKey(other.PublicKey())
		},
		"signature": func(m *domain.InitMessage) {
			m.Signature = bytes.Clone(m.Signature)
			m.Signature[len(m.Signature)-1] ^= 0x01
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tampered := m
			mutate(&tampered)
			assert.ErrorIs(t, transcript.VerifyInit(tampered), domain.ErrInvalidSignature)
		})
	}
}

func TestVerifyInitRejectsSubstitutedSigner(t *testing.T) {
	_, m := makeInit(t)
	mallory, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	m.SenderLongTermPublicKey, err = crypto.ExportPublicKey(&mallory.PublicKey)
	require.NoError(t, err)
	assert.ErrorIs(t, transcript.VerifyInit(m), domain.ErrInvalidSignature)
}

func TestSignVerifyResponse(t *testing.T) {
	priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	lt, err := crypto.ExportPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	eph, err := crypto.GenerateEphemeralKeyPair()
	require.NoError(t, err)

	r := domain.ResponseMessage{
		SenderID:                 "bob",
		ReceiverID:               "alice",
		SenderLongTermPublicKey:  lt,
		SenderEphemeralPublicKey: crypto.ExportEphemeralPublicKey(eph.PublicKey()),
		NonceInitiator:           "A1",
		NonceResponder:           "B1",
		Timestamp:                1_700_000_000_500,
	}
	require.NoError(t, transcript.SignResponse(priv, &r))
	require.NoError(t, transcript.VerifyResponse(r))

	r.NonceInitiator = "A9"
	assert.ErrorIs(t, transcript.VerifyResponse(r), domain.ErrInvalidSignature)
}

func TestAssociatedDataBindsMetadata(t *testing.T) {
	m := domain.EncryptedMessage{SenderID: "alice", ReceiverID: "bob", Nonce: "n", Timestamp: 1, SequenceNumber: 1}
	base := transcript.Message(m)
	m.SequenceNumber = 2
	assert.NotEqual(t, base, transcript.Message(m))

	rec := domain.FileRecord{FileID: "f", SenderID: "alice", ReceiverID: "bob", FileName: "a.txt",
		FileType: "text/plain", FileSize: 8, TotalChunks: 2, UploadedAt: 1}
	chunk := transcript.Chunk(rec, 0)
	assert.NotEqual(t, chunk, transcript.Chunk(rec, 1))
	for name, edit := range map[string]func(*domain.FileRecord){
		"file_id":      func(r *domain.FileRecord) { r.FileID = "g" },
		"sender":       func(r *domain.FileRecord) { r.SenderID = "mallory" },
		"receiver":     func(r *domain.FileRecord) { r.ReceiverID = "carol" },
		"name":         func(r *domain.FileRecord) { r.FileName = "b.txt" },
		"type":         func(r *domain.FileRecord) { r.FileType = "text/html" },
		"size":         func(r *domain.FileRecord) { r.FileSize = 4 },
		"total_chunks": func(r *domain.FileRecord) { r.TotalChunks = 1 },
		"uploaded_at":  func(r *domain.FileRecord) { r.UploadedAt = 2 },
	} {
		r := rec
		edit(&r)
		assert.NotEqual(t, chunk, transcript.Chunk(r, 0), name)
	}
	r := rec
	r.Digest = []byte{1}
	r.Chunks = []domain.EncryptedChunk{{ChunkIndex: 5}}
	assert.Equal(t, chunk, transcript.Chunk(r, 0), "chunks and digest are not part of the associated data")
	assert.NotEqual(t,
		transcript.Confirmation(domain.KindConfirm, "alice", "bob"),
		transcript.Confirmation(domain.KindAck, "alice", "bob"))
}
