// Package main runs the parley relay: an in-memory store-and-forward HTTP
// service that holds published public keys and queues envelopes for
// recipients until they fetch and acknowledge them.
//
// Usage
//
//	relay --listen :8080 --rate 10 --burst 50
//
// The routes are documented in internal/relay. Metrics, including Go runtime
// and process collectors, are served at /metrics.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Envelope posts are limited per sender; excess requests get 429.
//   - SIGINT or SIGTERM drains in-flight requests before exiting.
//
// The relay never sees plaintext or private keys. Peers pin each other's keys
// on first use, so a relay that swaps keys later is detected.
package main
