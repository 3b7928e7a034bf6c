// Package blob provides the key/value storage the node persists objects and chain state in.
package blob

import (
	"context"
)

// Store defines the interface for blob storage operations.
//
// Implementations:
//   - memory: in-memory map, used in tests and for throwaway nodes
//   - file: one file per key below a root directory
//   - leveldb: embedded LevelDB database
//   - sql: sqlite (file or shared memory) or postgres table
//
// Get returns an error matching errors.ErrNotFound when the key is absent.
type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Exists(ctx context.Context, key []byte) (bool, error)
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key []byte, value []byte) error
	Del(ctx context.Context, key []byte) error
	Close(ctx context.Context) error
}

// Iterator is implemented by stores that can enumerate their keys. The key slice passed to
// fn is only valid during the call.
type Iterator interface {
	IterateKeys(ctx context.Context, fn func(key []byte) error) error
}
