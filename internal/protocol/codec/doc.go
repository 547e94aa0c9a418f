// Package codec seals data messages and files under established session keys.
//
// A data message binds its sender, receiver, nonce, timestamp and sequence
// number as associated data, so none of them can be altered without the tag
// failing. Incoming messages are checked against the replay guard before and
// after decryption; only a message that authenticates is recorded.
//
// Files are split into chunks (1 MiB by default) and each chunk is sealed
// independently with its file id and index as associated data. DecryptFile
// accepts chunks in any order.
package codec
