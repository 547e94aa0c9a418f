// Package app wires application dependencies for the CLI.
//
// LoadConfig reads the viper-backed Config. NewWire builds the stores, relay
// client and the identity and directory services from it; Unlock then loads
// the identity and adds the handshake manager, codec and the session and
// message services, returning an App that commands drive.
package app
