// Package storage provides the key/blob persistence the client cart is kept in.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("storage: key not found")

// Storage persists opaque blobs under string keys. Set replaces any previous
// value. Implementations are safe for concurrent use; concurrent writers to
// the same key are last-writer-wins.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
