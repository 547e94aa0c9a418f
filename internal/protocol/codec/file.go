package codec

import (
	"crypto/subtle"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/protocol/transcript"
	"parley/internal/util/memzero"
)

const (
	digestLabel = "parley/file-digest/v1"
	digestSize  = 32
)

// fileDigest is a keyed BLAKE3 MAC of data under a per-file subkey of the
// session key.
func fileDigest(sessionKey []byte, fileID string, data []byte) ([]byte, error) {
	key, err := crypto.DeriveSubkey(sessionKey, digestLabel, fileID)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key[:])
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		return nil, fmt.Errorf("digest key: %w", err)
	}
	_, _ = h.Write(data)
	return h.Sum(nil), nil
}

// EncryptFile splits data into chunks and seals each one for peer.
func (c *Codec) EncryptFile(peer domain.UserID, name, fileType string, data []byte) (domain.FileRecord, error) {
	s, ok := c.sessions.Get(peer)
	if !ok {
		return domain.FileRecord{}, fmt.Errorf("%w: with %q", domain.ErrNoSession, peer)
	}
	defer memzero.Zero(s.Key[:])

	id := uuid.NewString()
	digest, err := fileDigest(s.Key[:], id, data)
	if err != nil {
		return domain.FileRecord{}, err
	}
	rec := domain.FileRecord{
		FileID:      id,
		SenderID:    c.self,
		ReceiverID:  peer,
		FileName:    name,
		FileType:    fileType,
		FileSize:    int64(len(data)),
		TotalChunks: (len(data) + c.chunkSize - 1) / c.chunkSize,
		Digest:      digest,
		UploadedAt:  c.now().UnixMilli(),
	}
	rec.Chunks = make([]domain.EncryptedChunk, 0, rec.TotalChunks)
	for i := range rec.TotalChunks {
		start := i * c.chunkSize
		end := min(start+c.chunkSize, len(data))
		sealed, err := crypto.Encrypt(s.Key[:], data[start:end], transcript.Chunk(rec, i))
		if err != nil {
			return domain.FileRecord{}, fmt.Errorf("encrypt chunk %d: %w", i, err)
		}
		rec.Chunks = append(rec.Chunks, domain.EncryptedChunk{ChunkIndex: i, Sealed: sealed})
	}

	c.metrics.File("out", rec.FileSize)
	c.log.Debug().Str("peer", peer.String()).Str("file_id", rec.FileID).
		Int("chunks", rec.TotalChunks).Msg("file encrypted")
	return rec, nil
}

// DecryptFile reassembles rec. Chunks may arrive in any order but every index
// in [0, TotalChunks) must be present exactly once.
func (c *Codec) DecryptFile(rec domain.FileRecord) (domain.DecryptedFile, error) {
	if rec.ReceiverID != c.self {
		return domain.DecryptedFile{}, fmt.Errorf("%w: for %q", domain.ErrMisdirected, rec.ReceiverID)
	}
	peer := rec.SenderID
	s, ok := c.sessions.Get(peer)
	if !ok {
		return domain.DecryptedFile{}, fmt.Errorf("%w: with %q", domain.ErrNoSession, peer)
	}
	defer memzero.Zero(s.Key[:])

	chunks, err := ordered(rec)
	if err != nil {
		return domain.DecryptedFile{}, err
	}

	data := make([]byte, 0, rec.FileSize)
	for _, ch := range chunks {
		pt, err := crypto.Decrypt(s.Key[:], ch.Sealed, transcript.Chunk(rec, ch.ChunkIndex))
		if err != nil {
			memzero.Zero(data)
			c.metrics.DecryptFailed()
			observability.SecurityEvent(c.log, observability.EventDecryptionFailed, peer,
				observability.SeverityHigh, err)
			return domain.DecryptedFile{}, fmt.Errorf("chunk %d: %w", ch.ChunkIndex, err)
		}
		data = append(data, pt...)
	}

	if int64(len(data)) != rec.FileSize {
		memzero.Zero(data)
		return domain.DecryptedFile{}, fmt.Errorf("%w: got %d bytes, want %d",
			domain.ErrIncompleteFile, len(data), rec.FileSize)
	}
	sum, err := fileDigest(s.Key[:], rec.FileID, data)
	if err != nil {
		memzero.Zero(data)
		return domain.DecryptedFile{}, err
	}
	if subtle.ConstantTimeCompare(sum, rec.Digest) != 1 {
		memzero.Zero(data)
		return domain.DecryptedFile{}, fmt.Errorf("%w: digest mismatch", domain.ErrIncompleteFile)
	}

	c.metrics.File("in", rec.FileSize)
	return domain.DecryptedFile{
		FileID:     rec.FileID,
		From:       peer,
		FileName:   rec.FileName,
		FileType:   rec.FileType,
		Data:       data,
		UploadedAt: rec.UploadedAt,
	}, nil
}

// ordered returns rec's chunks sorted by index after checking that they form
// exactly the sequence 0..TotalChunks-1.
func ordered(rec domain.FileRecord) ([]domain.EncryptedChunk, error) {
	if rec.TotalChunks < 0 || rec.FileSize < 0 {
		return nil, fmt.Errorf("%w: negative size", domain.ErrIncompleteFile)
	}
	if len(rec.Digest) != digestSize {
		return nil, fmt.Errorf("%w: missing digest", domain.ErrIncompleteFile)
	}
	if len(rec.Chunks) != rec.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d chunks", domain.ErrIncompleteFile, len(rec.Chunks), rec.TotalChunks)
	}
	var total int64
	for _, ch := range rec.Chunks {
		total += int64(len(ch.Ciphertext))
	}
	// GCM ciphertext is as long as its plaintext, so this catches a lying
	// size before anything is allocated.
	if total != rec.FileSize {
		return nil, fmt.Errorf("%w: chunks hold %d bytes, want %d", domain.ErrIncompleteFile, total, rec.FileSize)
	}
	chunks := slices.Clone(rec.Chunks)
	slices.SortFunc(chunks, func(a, b domain.EncryptedChunk) int { return a.ChunkIndex - b.ChunkIndex })
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			return nil, fmt.Errorf("%w: missing or duplicate chunk %d", domain.ErrIncompleteFile, i)
		}
	}
	return chunks, nil
}
