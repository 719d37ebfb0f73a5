// Package kv defines the key-value persistence collaborator the Attempt Store
// writes through, and its backends.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable wraps every backend read/write failure.
	ErrUnavailable = errors.New("kv: store unavailable")
	// ErrQuotaExceeded is returned when the backend refuses a write for lack of space.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
)

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
