// Package session drives authenticated key exchanges with peers over the
// relay. It sends the Init, routes incoming handshake envelopes to the
// handshake manager and posts whatever reply the manager produces.
package session
