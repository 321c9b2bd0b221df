package cart

import (
	"context"

	pkgerrors "github.com/angelmondragon/cartstore/pkg/errors"
)

type ctxKey struct{}

// WithStore opens a session scope: consumers below ctx can reach the store.
func WithStore(ctx context.Context, store *Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, store)
}

// FromContext returns the store of the enclosing session scope. Outside a scope
// it fails with CART_SCOPE_MISSING, which always indicates a wiring bug.
func FromContext(ctx context.Context) (*Store, error) {
	if ctx != nil {
		if store, ok := ctx.Value(ctxKey{}).(*Store); ok && store != nil {
			return store, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeScopeMissing, "cart accessed outside of an active session scope")
}

// MustFromContext is FromContext for code that cannot run without a cart.
func MustFromContext(ctx context.Context) *Store {
	store, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return store
}
