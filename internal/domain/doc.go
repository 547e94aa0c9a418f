// Package domain holds the shared types, interfaces and error values used across
// parley. Concrete types live in domain/types and contracts in domain/interfaces;
// this package re-exports both so callers can import a single path.
package domain
