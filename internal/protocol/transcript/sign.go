package transcript

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"parley/internal/crypto"
	"parley/internal/domain"
)

// Sign signs canonical bytes with a long-term key.
func Sign(priv *ecdsa.PrivateKey, canonical []byte) ([]byte, error) {
	digest := sha256.Sum256(canonical)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

// Verify reports whether sig is a valid signature over canonical by pub.
func Verify(pub *ecdsa.PublicKey, canonical, sig []byte) bool {
	if pub == nil || len(sig) == 0 {
		return false
	}
	digest := sha256.Sum256(canonical)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// SignInit fills in m.Signature.
func SignInit(priv *ecdsa.PrivateKey, m *domain.InitMessage) error {
	sig, err := Sign(priv, Init(*m))
	if err != nil {
		return fmt.Errorf("sign init: %w", err)
	}
	m.Signature = sig
	return nil
}

// SignResponse fills in m.Signature.
func SignResponse(priv *ecdsa.PrivateKey, m *domain.ResponseMessage) error {
	sig, err := Sign(priv, Response(*m))
	if err != nil {
		return fmt.Errorf("sign response: %w", err)
	}
	m.Signature = sig
	return nil
}

// VerifyInit checks m's signature against the long-term key it claims.
func VerifyInit(m domain.InitMessage) error {
	return verifyClaimed(m.SenderLongTermPublicKey, Init(m), m.Signature)
}

// VerifyResponse checks m's signature against the long-term key it claims.
func VerifyResponse(m domain.ResponseMessage) error {
	return verifyClaimed(m.SenderLongTermPublicKey, Response(m), m.Signature)
}

func verifyClaimed(claimed domain.PublicKey, canonical, sig []byte) error {
	pub, err := crypto.ImportPublicKey(claimed)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if !Verify(pub, canonical, sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}
