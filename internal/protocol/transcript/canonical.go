package transcript

import (
	"bytes"
	"encoding/binary"

	"parley/internal/domain"
)

const (
	initLabel         = "parley/key-exchange-init/v1"
	responseLabel     = "parley/key-exchange-response/v1"
	confirmationLabel = "parley/key-confirmation/v1"
	messageLabel      = "parley/message/v1"
	chunkLabel        = "parley/file-chunk/v1"
)

// Encoder builds a canonical transcript field by field.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder starts a transcript with the given label.
func NewEncoder(label string) *Encoder {
	e := &Encoder{}
	return e.String("label", label)
}

// Bytes appends a named raw field.
func (e *Encoder) Bytes(name string, v []byte) *Encoder {
	e.writeLen(len(name))
	e.buf.WriteString(name)
	e.writeLen(len(v))
	e.buf.Write(v)
	return e
}

// String appends a named UTF-8 field.
func (e *Encoder) String(name, v string) *Encoder {
	return e.Bytes(name, []byte(v))
}

// Int64 appends a named 8-byte big-endian integer.
func (e *Encoder) Int64(name string, v int64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return e.Bytes(name, b[:])
}

// Uint64 appends a named 8-byte big-endian unsigned integer.
func (e *Encoder) Uint64(name string, v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return e.Bytes(name, b[:])
}

// PublicKey appends a named public key as its uncompressed point.
func (e *Encoder) PublicKey(name string, pk domain.PublicKey) *Encoder {
	e.String(name+".crv", pk.Curve)
	return e.Bytes(name, pk.Point())
}

// Encoded returns the transcript bytes.
func (e *Encoder) Encoded() []byte { return bytes.Clone(e.buf.Bytes()) }

func (e *Encoder) writeLen(n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	e.buf.Write(b[:])
}

// Init returns the signed fields of an Init message. The signature itself is
// excluded.
func Init(m domain.InitMessage) []byte {
	return NewEncoder(initLabel).
		String("sender_id", m.SenderID.String()).
		String("receiver_id", m.ReceiverID.String()).
		PublicKey("sender_long_term_public_key", m.SenderLongTermPublicKey).
		PublicKey("sender_ephemeral_public_key", m.SenderEphemeralPublicKey).
		String("nonce", m.Nonce).
		Int64("timestamp", m.Timestamp).
		Encoded()
}

// Response returns the signed fields of a Response message.
func Response(m domain.ResponseMessage) []byte {
	return NewEncoder(responseLabel).
		String("sender_id", m.SenderID.String()).
		String("receiver_id", m.ReceiverID.String()).
		PublicKey("sender_long_term_public_key", m.SenderLongTermPublicKey).
		PublicKey("sender_ephemeral_public_key", m.SenderEphemeralPublicKey).
		String("nonce_initiator", m.NonceInitiator).
		String("nonce_responder", m.NonceResponder).
		Int64("timestamp", m.Timestamp).
		Encoded()
}

// Confirmation returns the associated data for a Confirm or Ack.
func Confirmation(kind domain.Kind, sender, receiver domain.UserID) []byte {
	return NewEncoder(confirmationLabel).
		String("kind", string(kind)).
		String("sender_id", sender.String()).
		String("receiver_id", receiver.String()).
		Encoded()
}

// Message returns the associated data binding a data message's metadata to
// its ciphertext.
func Message(m domain.EncryptedMessage) []byte {
	return NewEncoder(messageLabel).
		String("sender_id", m.SenderID.String()).
		String("receiver_id", m.ReceiverID.String()).
		String("nonce", m.Nonce).
		Int64("timestamp", m.Timestamp).
		Uint64("sequence_number", m.SequenceNumber).
		Encoded()
}

// Chunk returns the associated data for chunk index of rec. Every metadata
// field of the record except the chunks and digest is bound, so truncating,
// relabelling or rerouting a file breaks every chunk.
func Chunk(rec domain.FileRecord, index int) []byte {
	return NewEncoder(chunkLabel).
		String("file_id", rec.FileID).
		String("sender_id", rec.SenderID.String()).
		String("receiver_id", rec.ReceiverID.String()).
		String("file_name", rec.FileName).
		String("file_type", rec.FileType).
		Int64("file_size", rec.FileSize).
		Int64("total_chunks", int64(rec.TotalChunks)).
		Int64("uploaded_at", rec.UploadedAt).
		Int64("chunk_index", int64(index)).
		Encoded()
}
