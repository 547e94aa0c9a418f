package domain

import (
	interfaces "parley/internal/domain/interfaces"
	types "parley/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID           = types.UserID
	Fingerprint      = types.Fingerprint
	PublicKey        = types.PublicKey
	SessionKey       = types.SessionKey
	WrappedKey       = types.WrappedKey
	Identity         = types.Identity
	Role             = types.Role
	HandshakeState   = types.HandshakeState
	Session          = types.Session
	Kind             = types.Kind
	Sealed           = types.Sealed
	InitMessage      = types.InitMessage
	ResponseMessage  = types.ResponseMessage
	KeyConfirmation  = types.KeyConfirmation
	EncryptedMessage = types.EncryptedMessage
	EncryptedChunk   = types.EncryptedChunk
	FileRecord       = types.FileRecord
	Envelope         = types.Envelope
	DecryptedMessage = types.DecryptedMessage
	DecryptedFile    = types.DecryptedFile
	Inbound          = types.Inbound
)

// Constants re-exported from the types subpackage.
const (
	CurveP256 = types.CurveP256

	RoleInitiator = types.RoleInitiator
	RoleResponder = types.RoleResponder

	StateIdle        = types.StateIdle
	StateInitiating  = types.StateInitiating
	StateInitiated   = types.StateInitiated
	StateConfirming  = types.StateConfirming
	StateResponding  = types.StateResponding
	StateResponded   = types.StateResponded
	StateEstablished = types.StateEstablished

	KindInit     = types.KindInit
	KindResponse = types.KindResponse
	KindConfirm  = types.KindConfirm
	KindAck      = types.KindAck
	KindMessage  = types.KindMessage
	KindFile     = types.KindFile
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService  = interfaces.IdentityService
	DirectoryService = interfaces.DirectoryService
	SessionService   = interfaces.SessionService
	MessageService   = interfaces.MessageService
	RelayClient      = interfaces.RelayClient
	Directory        = interfaces.Directory
	KVStore          = interfaces.KVStore
	KeyStore         = interfaces.KeyStore
)
