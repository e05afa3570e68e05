// Package store provides storage backends for the request throttle.
package store

import (
	"context"
	"time"
)

// Result is the outcome of a Take call.
type Result struct {
	// Allowed reports whether the request was admitted and counted.
	Allowed bool
	// Remaining is the number of requests left in the current window.
	Remaining int64
	// ResetAt is the instant the current window closes.
	ResetAt time.Time
}

// Store defines the interface for throttle storage backends.
// Implementations must be safe for concurrent use, and the
// read-check-increment in Take must be atomic per key.
type Store interface {
	// Take admits and counts one request for the given key if fewer than
	// limit requests have been counted in the current window. A rejected
	// request is not counted. A key whose window has closed starts a fresh
	// window on the next Take.
	Take(ctx context.Context, key string, limit int64, window time.Duration) (Result, error)

	// Get retrieves the current count for the given key without counting.
	// Returns 0 if the key doesn't exist or its window has closed.
	Get(ctx context.Context, key string) (int64, error)

	// Reset removes the counter for the given key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
