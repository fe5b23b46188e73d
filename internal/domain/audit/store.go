package audit

import "context"

// Store persists audit records.
type Store interface {
	// Write appends a record to the trail.
	Write(ctx context.Context, record Record) error
	// Close flushes and releases the underlying resource.
	Close() error
}
