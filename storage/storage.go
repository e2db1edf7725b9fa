// Package storage holds the blob read/write primitive the object-index and
// index-membership drivers read and write tables through, plus the
// pebble-backed implementation this module ships for single-process
// deployments and tests.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("storage: key not found")

// Storage is the blob read/write primitive the drivers build on: two
// synchronous, per-key-serialized operations. The caller (sindex.KeyLocker) is
// responsible for serializing writes to the same key; implementations do
// not need to guard against concurrent writers of a single key themselves.
type Storage interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key, value []byte) error
}
