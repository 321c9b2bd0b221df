package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/cartstore/pkg/kv"
)

// PersistStatus reports what happened to a snapshot handed to a Persister.
type PersistStatus string

const (
	PersistOK     PersistStatus = "ok"
	PersistQueued PersistStatus = "queued"
	PersistFailed PersistStatus = "failed"
)

// PersistResult is the outcome of a Save. Mutations never surface it to their
// callers; the store logs and counts failures.
type PersistResult struct {
	Status PersistStatus
	Err    error
}

func persistOK() PersistResult { return PersistResult{Status: PersistOK} }

func persistFailed(err error) PersistResult {
	return PersistResult{Status: PersistFailed, Err: err}
}

// Persister is the on-change hook a Store writes through after every mutation,
// and the source it restores from when opened.
type Persister interface {
	// Load returns the persisted items. found is false when nothing is stored.
	Load(ctx context.Context) (items []LineItem, found bool, err error)
	Save(ctx context.Context, items []LineItem) PersistResult
}

// KVPersister stores the cart as one JSON value under a fixed key.
type KVPersister struct {
	store kv.Store
	key   string
}

func NewKVPersister(store kv.Store, key string) (*KVPersister, error) {
	if store == nil {
		return nil, errors.New("kv store required")
	}
	if key == "" {
		return nil, errors.New("storage key required")
	}
	return &KVPersister{store: store, key: key}, nil
}

func (p *KVPersister) Load(ctx context.Context) ([]LineItem, bool, error) {
	raw, err := p.store.Get(ctx, p.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", p.key, err)
	}
	items, err := Decode(raw)
	if err != nil {
		return nil, true, err
	}
	return items, true, nil
}

func (p *KVPersister) Save(ctx context.Context, items []LineItem) PersistResult {
	raw, err := Encode(items)
	if err != nil {
		return persistFailed(err)
	}
	if err := p.store.Set(ctx, p.key, raw); err != nil {
		return persistFailed(fmt.Errorf("write %q: %w", p.key, err))
	}
	return persistOK()
}
