// Package storage is the durable per-session client storage: small JSON
// values under well-known keys, each carrying a monotonic version stamp.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("storage: key not found")
	ErrVersionConflict = errors.New("storage: version conflict")
)

const (
	KeyCartItems   = "cartItems"
	KeyCurrentUser = "currentUser"
)

// Record is a stored value. A missing key behaves as version 0.
type Record struct {
	Value   []byte
	Version uint64
}

type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	// Put writes value if the stored version equals expected and returns the
	// new version. expected == 0 means the key must not exist yet.
	Put(ctx context.Context, key string, value []byte, expected uint64) (uint64, error)
	Delete(ctx context.Context, key string) error
}

// Key namespaces name under a session.
func Key(sessionID, name string) string {
	return sessionID + "/" + name
}
