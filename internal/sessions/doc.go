// Package sessions holds the active session key for each peer.
//
// A Directory is created once per process (or per logged-in user) and passed
// explicitly to the handshake manager, which installs keys, and to the codec,
// which reads them. Replaced and removed keys are wiped.
package sessions
