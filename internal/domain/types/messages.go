package types

import (
	"errors"
	"fmt"
)

// ErrMalformedEnvelope reports an envelope whose payload does not match its kind.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Kind tags a relay envelope with the payload it carries.
type Kind string

const (
	KindInit     Kind = "key_exchange_init"
	KindResponse Kind = "key_exchange_response"
	KindConfirm  Kind = "key_confirm"
	KindAck      Kind = "key_ack"
	KindMessage  Kind = "message"
	KindFile     Kind = "file"
)

// IsHandshake reports whether k is one of the four key exchange messages.
func (k Kind) IsHandshake() bool {
	switch k {
	case KindInit, KindResponse, KindConfirm, KindAck:
		return true
	}
	return false
}

// Sealed is an AES-GCM ciphertext with its IV and detached tag.
type Sealed struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"auth_tag"`
}

// InitMessage opens a handshake.
type InitMessage struct {
	SenderID                 UserID    `json:"sender_id"`
	ReceiverID               UserID    `json:"receiver_id"`
	SenderLongTermPublicKey  PublicKey `json:"sender_long_term_public_key"`
	SenderEphemeralPublicKey PublicKey `json:"sender_ephemeral_public_key"`
	Nonce                    string    `json:"nonce"`
	Timestamp                int64     `json:"timestamp"`
	Signature                []byte    `json:"signature"`
}

// ResponseMessage answers an InitMessage and echoes the initiator's nonce.
type ResponseMessage struct {
	SenderID                 UserID    `json:"sender_id"`
	ReceiverID               UserID    `json:"receiver_id"`
	SenderLongTermPublicKey  PublicKey `json:"sender_long_term_public_key"`
	SenderEphemeralPublicKey PublicKey `json:"sender_ephemeral_public_key"`
	NonceInitiator           string    `json:"nonce_initiator"`
	NonceResponder           string    `json:"nonce_responder"`
	Timestamp                int64     `json:"timestamp"`
	Signature                []byte    `json:"signature"`
}

// KeyConfirmation is used for both Confirm and Ack.
type KeyConfirmation struct {
	SenderID   UserID `json:"sender_id"`
	ReceiverID UserID `json:"receiver_id"`
	Sealed
}

// EncryptedMessage is a data message under an established session key.
type EncryptedMessage struct {
	SenderID       UserID `json:"sender_id"`
	ReceiverID     UserID `json:"receiver_id"`
	Sealed
	Nonce          string `json:"nonce"`
	Timestamp      int64  `json:"timestamp"`
	SequenceNumber uint64 `json:"sequence_number"`
}

// EncryptedChunk is one independently sealed slice of a file.
type EncryptedChunk struct {
	ChunkIndex int `json:"chunk_index"`
	Sealed
}

// FileRecord carries an encrypted file. Digest is a keyed BLAKE3 MAC of the
// plaintext under a subkey of the session key; it reveals nothing without it.
type FileRecord struct {
	FileID      string           `json:"file_id"`
	SenderID    UserID           `json:"sender_id"`
	ReceiverID  UserID           `json:"receiver_id"`
	FileName    string           `json:"file_name"`
	FileType    string           `json:"file_type"`
	FileSize    int64            `json:"file_size"`
	TotalChunks int              `json:"total_chunks"`
	Digest      []byte           `json:"digest"`
	UploadedAt  int64            `json:"uploaded_at"`
	Chunks      []EncryptedChunk `json:"chunks"`
}

// Envelope is the relay frame. Exactly one payload matching Kind is set.
type Envelope struct {
	ID        string            `json:"id,omitempty"`
	Kind      Kind              `json:"kind"`
	From      UserID            `json:"from"`
	To        UserID            `json:"to"`
	Timestamp int64             `json:"timestamp"`
	Init      *InitMessage      `json:"init,omitempty"`
	Response  *ResponseMessage  `json:"response,omitempty"`
	Confirm   *KeyConfirmation  `json:"confirm,omitempty"`
	Ack       *KeyConfirmation  `json:"ack,omitempty"`
	Message   *EncryptedMessage `json:"message,omitempty"`
	File      *FileRecord       `json:"file,omitempty"`
}

// Validate checks that the payload matches Kind and nothing else is attached.
func (e Envelope) Validate() error {
	set := 0
	for _, present := range []bool{
		e.Init != nil, e.Response != nil, e.Confirm != nil,
		e.Ack != nil, e.Message != nil, e.File != nil,
	} {
		if present {
			set++
		}
	}
	var ok bool
	switch e.Kind {
	case KindInit:
		ok = e.Init != nil
	case KindResponse:
		ok = e.Response != nil
	case KindConfirm:
		ok = e.Confirm != nil
	case KindAck:
		ok = e.Ack != nil
	case KindMessage:
		ok = e.Message != nil
	case KindFile:
		ok = e.File != nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEnvelope, e.Kind)
	}
	if !ok || set != 1 {
		return fmt.Errorf("%w: %q carries %d payloads", ErrMalformedEnvelope, e.Kind, set)
	}
	return nil
}

// DecryptedMessage is a delivered plaintext message.
type DecryptedMessage struct {
	From      UserID `json:"from"`
	To        UserID `json:"to"`
	Plaintext []byte `json:"plaintext"`
	Sequence  uint64 `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

// DecryptedFile is a reassembled file.
type DecryptedFile struct {
	FileID     string `json:"file_id"`
	From       UserID `json:"from"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	Data       []byte `json:"-"`
	UploadedAt int64  `json:"uploaded_at"`
}

// Inbound is the outcome of processing one relay envelope. Skipped envelopes
// were duplicates or stale and carry the reason; Err is set for failures.
type Inbound struct {
	EnvelopeID string
	Kind       Kind
	From       UserID
	Message    *DecryptedMessage
	File       *DecryptedFile
	Skipped    bool
	Reason     error
	Err        error
}
