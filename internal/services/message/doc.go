// Package message sends and receives encrypted messages and files over the
// relay, and is the single entry point for draining a mailbox: handshake
// envelopes found while receiving are handed to the session service.
package message
