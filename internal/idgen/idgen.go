// Package idgen wraps github.com/google/uuid for the identifiers rbfmctl
// attaches to its own log lines, mirroring tinySQL's own thin
// uuid_helpers.go wrapper rather than calling the uuid package ad hoc from
// every caller.
package idgen

import "github.com/google/uuid"

// NewCorrelationID returns a fresh random identifier a CLI invocation can
// stamp onto every log line it emits, making one run's lines greppable out
// of an interleaved log.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Parse validates and normalizes an identifier previously produced by
// NewCorrelationID (or any RFC 4122 UUID string).
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Bytes returns the 16-byte representation of u, for callers that want to
// embed a correlation ID in a binary record rather than its string form.
func Bytes(u uuid.UUID) []byte {
	return u[:]
}
