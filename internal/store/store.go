// Package store keeps serialized models addressed by the SHA-256 digest of their bytes.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNotFound is returned for ids the store does not hold.
var ErrNotFound = errors.New("model not found")

// ErrInvalidID is returned for ids that are not SHA-256 hex digests.
var ErrInvalidID = errors.New("invalid model id")

// ErrChecksumMismatch is returned when stored bytes no longer hash to their id.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Store is a content-addressed model store. Putting the same bytes twice yields the same id.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// ID returns the id of data: its SHA-256 digest in lower-case hex.
func ID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateID checks that id has the shape of an id returned by ID.
func ValidateID(id string) error {
	if len(id) != sha256.Size*2 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}
