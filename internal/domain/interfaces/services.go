package interfaces

import (
	"context"
	"time"

	domaintypes "parley/internal/domain/types"
)

// IdentityService manages the local long-term identity.
type IdentityService interface {
	GenerateIdentity(
		user domaintypes.UserID,
		passphrase string,
	) (domaintypes.Identity, domaintypes.Fingerprint, error)
	LoadIdentity(user domaintypes.UserID, passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(user domaintypes.UserID, passphrase string) (domaintypes.Fingerprint, error)
}

// DirectoryService publishes our public key and resolves peers' keys.
type DirectoryService interface {
	Directory
	Publish(ctx context.Context, id domaintypes.Identity) error
	Forget(user domaintypes.UserID)
}

// SessionService drives key exchanges with peers over the relay.
type SessionService interface {
	Initiate(ctx context.Context, peer domaintypes.UserID) error
	Handle(ctx context.Context, envelope domaintypes.Envelope) error
	State(peer domaintypes.UserID) domaintypes.HandshakeState
	Established(peer domaintypes.UserID) bool
	Reset(peer domaintypes.UserID)
	Expire(maxAge time.Duration) int
	Logout()
}

// MessageService sends and receives encrypted messages and files.
type MessageService interface {
	Send(ctx context.Context, peer domaintypes.UserID, plaintext []byte) error
	SendFile(
		ctx context.Context,
		peer domaintypes.UserID,
		name, fileType string,
		data []byte,
	) (string, error)
	Receive(ctx context.Context, limit int) ([]domaintypes.Inbound, error)
}
