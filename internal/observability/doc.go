// Package observability provides structured logging, security event reporting
// and Prometheus metrics for parley and its relay.
package observability
