package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NonceBytes is the amount of randomness behind every protocol nonce.
const NonceBytes = 32

// NewNonce returns 32 random bytes, base64 encoded.
func NewNonce() (string, error) {
	var b [NonceBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}
