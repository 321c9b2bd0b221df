// Package kv is the durable key-value surface carts persist to. Backends share
// one contract: Get reports ErrNotFound for absent keys, Set overwrites
// (last write wins) and Delete of a missing key is not an error.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string-keyed, string-valued persistent store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
