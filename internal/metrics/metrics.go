// Package metrics provides interfaces and implementations for collecting
// POP3 retrieval client metrics. This package defines the Collector
// interface for recording metrics and the Server interface for exposing
// them.
package metrics

import "context"

// Collector defines the interface for recording client-side metrics.
type Collector interface {
	// Session metrics
	SessionStarted(account string)
	SessionFinished(account string, success bool)
	TLSConnectionEstablished(account string)

	// Authentication metrics
	AuthAttempt(account string, success bool)

	// Command metrics
	CommandProcessed(account, command string)

	// Message transfer metrics
	MessageDownloaded(account string, sizeBytes int64)
	MessageDeleted(account string)
	DuplicateSkipped(account string)

	// ErrorObserved records a failure tagged by its kind (ConnError,
	// ProtocolError, DataError, UserAbort, ConfigError per §7).
	ErrorObserved(account, kind string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
