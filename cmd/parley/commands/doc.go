// Package commands defines the parley CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create or rotate the local identity
//   - fingerprint  Print the identity fingerprint
//   - register     Publish your public key to the relay
//   - config       Print the effective configuration
//   - connect      Run a key exchange with a peer and chat interactively
//   - send         Connect to a peer and send one message
//   - send-file    Connect to a peer and send one file
//   - listen       Answer key exchanges and print incoming messages
//   - reset        Forget a peer's pinned public key
//
// # Implementation
//
// The root command loads the configuration (flags, PARLEY_ environment
// variables, then config.yaml under --home) and builds the dependency graph
// lazily, so commands that only read configuration never open the store.
// Session keys live in memory, so every command that sends runs its own key
// exchange first and the peer must be running listen or connect.
package commands
