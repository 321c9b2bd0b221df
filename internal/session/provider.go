package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/cartstore/internal/cart"
	pkgerrors "github.com/angelmondragon/cartstore/pkg/errors"
	"github.com/angelmondragon/cartstore/pkg/kv"
	"github.com/angelmondragon/cartstore/pkg/logger"
	"github.com/angelmondragon/cartstore/pkg/metrics"
)

// CartKey is the fixed storage key a cart lives under, before session scoping.
const CartKey = "cart"

const maxSessionIDLen = 128

// Provider owns the cart stores of live sessions. A store is restored from
// storage the first time its session is opened and reused until it is closed.
type Provider struct {
	storage    kv.Store
	namespace  string
	asyncWrite bool
	logg       *logger.Logger
	metrics    *metrics.CartMetrics
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	ready    chan struct{} // closed once store is restored
	closing  chan struct{} // non-nil while the entry is being released; closed when done
	store    *cart.Store
	async    *cart.AsyncPersister
	lastSeen time.Time
}

// ProviderParams wires a Provider. A nil Storage means carts live only in memory.
type ProviderParams struct {
	Storage     kv.Store
	Namespace   string
	AsyncWrites bool
	Logger      *logger.Logger
	Metrics     *metrics.CartMetrics
	Clock       func() time.Time
}

func NewProvider(p ProviderParams) *Provider {
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Provider{
		storage:    p.Storage,
		namespace:  p.Namespace,
		asyncWrite: p.AsyncWrites,
		logg:       logg,
		metrics:    p.Metrics,
		now:        now,
		sessions:   make(map[string]*entry),
	}
}

// Key returns the storage key for a session's cart.
func (p *Provider) Key(sessionID string) string {
	parts := make([]string, 0, 3)
	if p.namespace != "" {
		parts = append(parts, p.namespace)
	}
	parts = append(parts, CartKey, sessionID)
	return strings.Join(parts, ":")
}

// Open returns the session's store, restoring it on first use. Restores run
// outside the provider lock; concurrent opens of the same session share one
// restore. A session that is being closed is reopened only after its pending
// writes have landed.
func (p *Provider) Open(ctx context.Context, sessionID string) (*cart.Store, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	var persister cart.Persister
	if p.storage != nil {
		kvp, err := cart.NewKVPersister(p.storage, p.Key(sessionID))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build cart persister")
		}
		persister = kvp
	}

	for {
		p.mu.Lock()
		e, ok := p.sessions[sessionID]
		if !ok {
			e = &entry{ready: make(chan struct{}), lastSeen: p.now()}
			p.sessions[sessionID] = e
			p.metrics.SetOpenSessions(len(p.sessions))
			p.mu.Unlock()

			p.restore(ctx, sessionID, e, persister)
			return e.store, nil
		}
		closing := e.closing
		if closing == nil {
			e.lastSeen = p.now()
		}
		p.mu.Unlock()

		if closing != nil {
			if err := wait(ctx, closing); err != nil {
				return nil, err
			}
			continue
		}
		if err := wait(ctx, e.ready); err != nil {
			return nil, err
		}
		return e.store, nil
	}
}

func (p *Provider) restore(ctx context.Context, sessionID string, e *entry, persister cart.Persister) {
	defer close(e.ready)

	// The store outlives the request that happened to open it.
	ctx = p.logg.WithSessionID(context.WithoutCancel(ctx), sessionID)
	opts := cart.Options{Logger: p.logg, Metrics: p.metrics, Persister: persister}
	if persister != nil && p.asyncWrite {
		e.async = cart.NewAsyncPersister(persister, p.logg, p.metrics)
		opts.Persister = e.async
	}
	e.store = cart.Open(ctx, opts)
	p.logg.Info(ctx, "session.opened")
}

// Close tears down a session's store once its pending writes are flushed.
// Persisted state is kept.
func (p *Provider) Close(ctx context.Context, sessionID string) {
	p.closeIf(ctx, sessionID, func(*entry) bool { return true })
}

// CloseAll tears down every open session, flushing pending writes.
func (p *Provider) CloseAll(ctx context.Context) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Close(ctx, id)
	}
}

// Sweep closes sessions idle for longer than idle and returns how many it closed.
func (p *Provider) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := p.now().Add(-idle)

	p.mu.Lock()
	var stale []string
	for id, e := range p.sessions {
		if e.closing == nil && e.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	p.mu.Unlock()

	closed := 0
	for _, id := range stale {
		if p.closeIdle(ctx, id, cutoff) {
			closed++
		}
	}
	return closed
}

// closeIdle closes the session only if it is still untouched since cutoff.
func (p *Provider) closeIdle(ctx context.Context, sessionID string, cutoff time.Time) bool {
	return p.closeIf(ctx, sessionID, func(e *entry) bool { return e.lastSeen.Before(cutoff) })
}

// closeIf marks the entry as closing when cond holds under the lock, flushes it,
// and only then removes it. Opens arriving meanwhile wait for the removal. A
// close that finds the entry already closing waits for that close instead.
func (p *Provider) closeIf(ctx context.Context, sessionID string, cond func(*entry) bool) bool {
	p.mu.Lock()
	e, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return false
	}
	if e.closing != nil {
		closing := e.closing
		p.mu.Unlock()
		<-closing
		return false
	}
	if !cond(e) {
		p.mu.Unlock()
		return false
	}
	e.closing = make(chan struct{})
	p.mu.Unlock()

	<-e.ready
	p.release(p.logg.WithSessionID(ctx, sessionID), e)

	p.mu.Lock()
	if p.sessions[sessionID] == e {
		delete(p.sessions, sessionID)
	}
	p.metrics.SetOpenSessions(len(p.sessions))
	p.mu.Unlock()
	close(e.closing)
	return true
}

// Len reports the number of open sessions.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Ping reports whether the storage backend is reachable. Providers without
// storage, or with a backend that cannot ping, are always healthy.
func (p *Provider) Ping(ctx context.Context) error {
	pinger, ok := p.storage.(kv.Pinger)
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

func (p *Provider) release(ctx context.Context, e *entry) {
	if e.async != nil {
		e.async.Close()
	}
	p.logg.Info(ctx, "session.closed")
}

func wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "cart session not ready")
	}
}

func validateSessionID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	case len(id) > maxSessionIDLen:
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is too long")
	case strings.ContainsAny(id, ": \t\n"):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.New("reserved character"), "session id contains reserved characters")
	}
	return nil
}
