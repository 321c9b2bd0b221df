package cart

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/cartstore/pkg/kv"
	"github.com/angelmondragon/cartstore/pkg/logger"
	"github.com/angelmondragon/cartstore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	stored  []LineItem
	found   bool
	loadErr error
	saveErr error
	saves   int
}

func (p *recordingPersister) Load(context.Context) ([]LineItem, bool, error) {
	return cloneItems(p.stored), p.found, p.loadErr
}

func (p *recordingPersister) Save(_ context.Context, items []LineItem) PersistResult {
	p.saves++
	if p.saveErr != nil {
		return persistFailed(p.saveErr)
	}
	p.stored = cloneItems(items)
	p.found = true
	return persistOK()
}

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

func widget(productID, variantID int64, price float64) Candidate {
	return Candidate{
		ProductID:   productID,
		VariantID:   variantID,
		Name:        "Widget",
		VariantName: "Blue",
		Price:       price,
		Image:       "/img/widget.png",
	}
}

func TestScenarioAddUpdateRemove(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	store := Open(ctx, Options{Persister: p})

	first := store.Add(ctx, Candidate{ProductID: 1, VariantID: 1, Name: "A", Price: 10})
	assert.Equal(t, 1, first.Quantity)
	assert.Equal(t, 1, store.TotalItems())
	assert.InDelta(t, 10.0, store.TotalPrice(), 1e-9)

	second := store.Add(ctx, Candidate{ProductID: 1, VariantID: 1, Name: "A", Price: 10})
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Quantity)
	assert.InDelta(t, 20.0, store.TotalPrice(), 1e-9)

	savesBefore := p.saves
	store.UpdateQuantity(ctx, first.ID, 0)
	assert.Equal(t, 2, store.Items()[0].Quantity)
	assert.Equal(t, savesBefore, p.saves, "rejected update must not write")

	store.Remove(ctx, first.ID)
	assert.Empty(t, store.Items())
	assert.Equal(t, 0, store.TotalItems())
	assert.Zero(t, store.TotalPrice())
	assert.Empty(t, p.stored)
}

func TestDuplicateAddKeepsFirstFields(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{})

	store.Add(ctx, Candidate{ProductID: 7, VariantID: 3, Name: "First", VariantName: "S", Price: 4.5, Image: "a.png"})
	for i := 0; i < 4; i++ {
		store.Add(ctx, Candidate{ProductID: 7, VariantID: 3, Name: "Later", VariantName: "M", Price: 99, Image: "b.png"})
	}

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "First", items[0].Name)
	assert.Equal(t, "S", items[0].VariantName)
	assert.Equal(t, 4.5, items[0].Price)
	assert.Equal(t, "a.png", items[0].Image)
}

func TestDistinctVariantsGetDistinctRows(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{Clock: func() time.Time { return time.UnixMilli(1700000000000) }})

	a := store.Add(ctx, widget(1, 1, 1))
	b := store.Add(ctx, widget(1, 2, 1))
	c := store.Add(ctx, widget(2, 1, 1))

	assert.Equal(t, "1-1-1700000000000", a.ID)
	assert.Equal(t, "1-2-1700000000000", b.ID)
	assert.Equal(t, "2-1-1700000000000", c.ID)
	assert.Len(t, store.Items(), 3)
}

func TestReAddAfterRemoveInSameMillisecondKeepsIDsUnique(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{Clock: func() time.Time { return time.UnixMilli(42) }})

	first := store.Add(ctx, widget(1, 1, 1))
	store.Add(ctx, widget(2, 2, 1))
	store.Remove(ctx, first.ID)
	again := store.Add(ctx, widget(1, 1, 1))

	assert.Equal(t, first.ID, again.ID, "id is free again once the row is gone")

	ids := map[string]bool{}
	for _, item := range store.Items() {
		assert.False(t, ids[item.ID])
		ids[item.ID] = true
	}
}

func TestUpdateQuantityFloor(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{})
	item := store.Add(ctx, widget(1, 1, 2))
	store.UpdateQuantity(ctx, item.ID, 3)

	for _, q := range []int{0, -1, -100} {
		store.UpdateQuantity(ctx, item.ID, q)
		assert.Equal(t, 3, store.Items()[0].Quantity, "quantity %d must be ignored", q)
	}
}

func TestUpdateQuantityKeepsPositionAndFields(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{Clock: fixedClock(time.Unix(0, 0))})
	a := store.Add(ctx, widget(1, 1, 2))
	b := store.Add(ctx, widget(2, 1, 3))
	c := store.Add(ctx, widget(3, 1, 4))

	store.UpdateQuantity(ctx, b.ID, 9)

	items := store.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
	want := b
	want.Quantity = 9
	assert.Equal(t, want, items[1])
}

func TestUnknownIDsAreNoops(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	store := Open(ctx, Options{Persister: p})
	store.Add(ctx, widget(1, 1, 2))
	saves := p.saves

	store.Remove(ctx, "nope")
	store.UpdateQuantity(ctx, "nope", 5)

	assert.Len(t, store.Items(), 1)
	assert.Equal(t, saves, p.saves)
}

func TestRemovePreservesOrderOfOthers(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{Clock: fixedClock(time.Unix(0, 0))})
	a := store.Add(ctx, widget(1, 1, 1))
	b := store.Add(ctx, widget(2, 1, 1))
	c := store.Add(ctx, widget(3, 1, 1))
	d := store.Add(ctx, widget(4, 1, 1))

	store.Remove(ctx, b.ID)

	assert.Equal(t, []LineItem{a, c, d}, store.Items())
}

func TestTotalsAreDerived(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{Clock: fixedClock(time.Unix(0, 0))})
	a := store.Add(ctx, widget(1, 1, 19.99))
	b := store.Add(ctx, widget(2, 1, 0.1))
	store.Add(ctx, widget(3, 1, 5))
	store.UpdateQuantity(ctx, a.ID, 3)
	store.UpdateQuantity(ctx, b.ID, 7)

	view := store.View()
	assert.Equal(t, 11, view.TotalItems)
	assert.InDelta(t, 19.99*3+0.1*7+5, view.TotalPrice, 1e-9)
	assert.Equal(t, view.TotalItems, store.TotalItems())
	assert.InDelta(t, view.TotalPrice, store.TotalPrice(), 1e-9)
}

func TestClearEmptiesAndPersists(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	store := Open(ctx, Options{Persister: p})
	store.Add(ctx, widget(1, 1, 1))
	store.Add(ctx, widget(2, 1, 1))

	store.Clear(ctx)

	assert.Empty(t, store.Items())
	assert.NotNil(t, p.stored)
	assert.Empty(t, p.stored)
}

func TestRoundTripThroughKVStore(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	persister, err := NewKVPersister(backing, "cart")
	require.NoError(t, err)

	store := Open(ctx, Options{Persister: persister, Clock: fixedClock(time.Unix(100, 0))})
	store.Add(ctx, widget(3, 1, 12.5))
	store.Add(ctx, widget(1, 9, 3))
	store.Add(ctx, widget(3, 1, 12.5))
	want := store.Items()

	restored := Open(ctx, Options{Persister: persister})
	assert.Equal(t, want, restored.Items())
}

func TestMalformedPersistedDataStartsEmpty(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"not json":       "{{{",
		"object":         `{"items":[]}`,
		"null":           "null",
		"wrong types":    `[{"id":"1","productId":"x","quantity":1}]`,
		"zero quantity":  `[{"id":"1","productId":1,"variantId":1,"quantity":0}]`,
		"missing id":     `[{"productId":1,"variantId":1,"quantity":1}]`,
		"duplicate pair": `[{"id":"a","productId":1,"variantId":1,"quantity":1},{"id":"b","productId":1,"variantId":1,"quantity":1}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			backing := kv.NewMemory()
			require.NoError(t, backing.Set(ctx, "cart", raw))
			persister, err := NewKVPersister(backing, "cart")
			require.NoError(t, err)

			buf := &bytes.Buffer{}
			reg := prometheus.NewRegistry()
			m := metrics.NewCartMetrics(reg)
			store := Open(ctx, Options{
				Persister: persister,
				Logger:    logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: buf}),
				Metrics:   m,
			})

			assert.Empty(t, store.Items())
			assert.Contains(t, buf.String(), "cart.restore_failed")
			assert.Equal(t, 1.0, counterValue(t, reg, "cart_restore_failures_total"))
		})
	}
}

func TestStorageReadErrorStartsEmpty(t *testing.T) {
	store := Open(context.Background(), Options{Persister: &recordingPersister{loadErr: errors.New("io timeout")}})
	assert.Empty(t, store.Items())
}

func TestPersistFailureDoesNotAffectState(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	p := &recordingPersister{saveErr: errors.New("quota exceeded")}
	store := Open(ctx, Options{
		Persister: p,
		Logger:    logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: buf}),
	})

	item := store.Add(ctx, widget(1, 1, 2))
	store.UpdateQuantity(ctx, item.ID, 4)

	assert.Equal(t, 4, store.TotalItems())
	assert.Equal(t, 2, p.saves)
	assert.Contains(t, buf.String(), "cart.persist_failed")
	assert.Contains(t, buf.String(), "quota exceeded")
}

func TestNoStorageSurfaceIsPureMemory(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{})
	store.Add(ctx, widget(1, 1, 1))
	assert.Len(t, store.Items(), 1)

	fresh := Open(ctx, Options{})
	assert.Empty(t, fresh.Items())
}

func TestItemsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{})
	store.Add(ctx, widget(1, 1, 1))

	items := store.Items()
	items[0].Quantity = 50
	view := store.View()
	view.Items[0].Name = "changed"

	got := store.Items()[0]
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, "Widget", got.Name)
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{})

	var seen []int
	unsubscribe := store.Subscribe(func(v View) { seen = append(seen, v.TotalItems) })

	item := store.Add(ctx, widget(1, 1, 1))
	store.Add(ctx, widget(1, 1, 1))
	store.UpdateQuantity(ctx, item.ID, 0)
	store.UpdateQuantity(ctx, item.ID, 5)
	unsubscribe()
	store.Clear(ctx)

	assert.Equal(t, []int{1, 2, 5}, seen)
}

func TestUnsubscribeReleasesListener(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Options{})

	var kept int
	store.Subscribe(func(View) { kept++ })
	for i := 0; i < 100; i++ {
		unsubscribe := store.Subscribe(func(View) { t.Fatal("unsubscribed listener called") })
		unsubscribe()
		unsubscribe()
	}

	store.listenersMu.RLock()
	assert.Len(t, store.listeners, 1)
	store.listenersMu.RUnlock()

	store.Add(ctx, widget(1, 1, 1))
	assert.Equal(t, 1, kept)
}

func TestMutationMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	store := Open(ctx, Options{Metrics: metrics.NewCartMetrics(reg)})

	item := store.Add(ctx, widget(1, 1, 1))
	store.UpdateQuantity(ctx, item.ID, 2)
	store.Remove(ctx, item.ID)
	store.Clear(ctx)

	count, err := testutil.GatherAndCount(reg, "cart_mutations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count, "one series per operation")
	assert.Equal(t, 4.0, counterValue(t, reg, "cart_mutations_total"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		total := 0.0
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
