// Package storage uploads image payloads to an S3-compatible object store
// and hands back publicly dereferenceable locators.
package storage

import (
	"context"
)

// Storage is the interface for persisting binary payloads.
type Storage interface {
	// Store writes data under a freshly generated key and returns the
	// public locator of the stored object. The key embeds a random unique
	// token so repeated uploads of the same filename never collide.
	Store(ctx context.Context, data []byte, contentType, filename string) (string, error)
}
