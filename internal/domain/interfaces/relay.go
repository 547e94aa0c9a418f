package interfaces

import (
	"context"

	domaintypes "parley/internal/domain/types"
)

// RelayClient is how we talk to the central relay server, all with context.
// Delivery is at-least-once and unordered.
type RelayClient interface {
	PublishPublicKey(ctx context.Context, user domaintypes.UserID, pub domaintypes.PublicKey) error
	FetchPublicKey(ctx context.Context, user domaintypes.UserID) (domaintypes.PublicKey, error)

	SendEnvelope(ctx context.Context, envelope domaintypes.Envelope) error
	FetchEnvelopes(
		ctx context.Context,
		user domaintypes.UserID,
		limit int,
	) ([]domaintypes.Envelope, error)
	AckEnvelopes(ctx context.Context, user domaintypes.UserID, count int) error
}

// Directory resolves the long-term public key on record for a user.
type Directory interface {
	LongTermPublicKey(ctx context.Context, user domaintypes.UserID) (domaintypes.PublicKey, error)
}
