package cart

import (
	"context"
	"sync"

	"github.com/angelmondragon/cartstore/pkg/logger"
	"github.com/angelmondragon/cartstore/pkg/metrics"
)

// AsyncPersister moves writes off the caller's path. Pending snapshots are
// coalesced: only the latest one is written, so storage still converges on the
// in-memory state.
type AsyncPersister struct {
	next    Persister
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	mu         sync.Mutex
	pending    []LineItem
	pendingCtx context.Context
	hasPending bool
	closed     bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewAsyncPersister(next Persister, logg *logger.Logger, m *metrics.CartMetrics) *AsyncPersister {
	if logg == nil {
		logg = logger.Nop()
	}
	a := &AsyncPersister{
		next:    next,
		logg:    logg,
		metrics: m,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncPersister) Load(ctx context.Context) ([]LineItem, bool, error) {
	return a.next.Load(ctx)
}

// Save queues the snapshot and returns immediately. After Close it writes
// synchronously.
func (a *AsyncPersister) Save(ctx context.Context, items []LineItem) PersistResult {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return a.next.Save(ctx, items)
	}
	a.pending = cloneItems(items)
	a.pendingCtx = context.WithoutCancel(ctx)
	a.hasPending = true
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return PersistResult{Status: PersistQueued}
}

// Close flushes the pending snapshot and stops the writer.
func (a *AsyncPersister) Close() {
	a.once.Do(func() {
		close(a.done)
		a.wg.Wait()
	})
}

func (a *AsyncPersister) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.wake:
			a.flush()
		case <-a.done:
			a.mu.Lock()
			a.closed = true
			a.mu.Unlock()
			a.flush()
			return
		}
	}
}

func (a *AsyncPersister) flush() {
	a.mu.Lock()
	if !a.hasPending {
		a.mu.Unlock()
		return
	}
	items, ctx := a.pending, a.pendingCtx
	a.pending, a.pendingCtx, a.hasPending = nil, nil, false
	a.mu.Unlock()

	res := a.next.Save(ctx, items)
	if res.Status == PersistFailed {
		a.metrics.IncPersistFailure()
		a.logg.WarnErr(ctx, "cart.persist_failed", res.Err)
	}
}
