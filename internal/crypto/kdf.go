package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"parley/internal/domain"
	"parley/internal/util/memzero"
)

// SessionKeyInfoPrefix versions the HKDF info string.
const SessionKeyInfoPrefix = "session-key-v1-"

// DeriveSessionKey runs HKDF-SHA256 with ikm = shared, salt = nI ‖ nR and
// info = "session-key-v1-" ‖ initiator ‖ "-" ‖ responder.
func DeriveSessionKey(
	shared []byte,
	nonceInitiator, nonceResponder string,
	initiator, responder domain.UserID,
) (domain.SessionKey, error) {
	var key domain.SessionKey
	salt := []byte(nonceInitiator + nonceResponder)
	info := []byte(SessionKeyInfoPrefix + initiator.String() + "-" + responder.String())

	r := hkdf.New(sha256.New, shared, salt, info)
	buf := make([]byte, len(key))
	defer memzero.Zero(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return key, fmt.Errorf("hkdf: %w", err)
	}
	copy(key[:], buf)
	return key, nil
}

// DeriveSubkey expands a 32-byte key for one purpose from key with
// HKDF-SHA256, salt = context and info = label.
func DeriveSubkey(key []byte, label, context string) ([32]byte, error) {
	var sub [32]byte
	r := hkdf.New(sha256.New, key, []byte(context), []byte(label))
	if _, err := io.ReadFull(r, sub[:]); err != nil {
		return sub, fmt.Errorf("hkdf: %w", err)
	}
	return sub, nil
}
