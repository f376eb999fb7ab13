package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/okhati-storefront/internal/cart/app"
	"github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
	"github.com/dwikikusuma/okhati-storefront/internal/cart/infra/kv"
	"github.com/dwikikusuma/okhati-storefront/internal/storage/memory"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	calls    int
	block    chan struct{}
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	f := &fakeCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeCatalog) setStock(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	p.CountInStock = n
	f.products[id] = p
}

func (f *fakeCatalog) Product(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", app.ErrProductNotFound, id)
	}
	return p, nil
}

func (f *fakeCatalog) Stock(ctx context.Context, ids []string) (domain.StockSnapshot, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	snap := make(domain.StockSnapshot, len(ids))
	for _, id := range ids {
		snap[id] = f.products[id].CountInStock
	}
	return snap, nil
}

func product(id string, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), CountInStock: stock}
}

func newService(t *testing.T, cat *fakeCatalog) (*app.Service, *kv.LineStore) {
	t.Helper()
	repo := kv.NewLineStore(memory.NewStore())
	svc, err := app.NewService(repo, cat, cat, 16)
	require.NoError(t, err)
	return svc, repo
}

func TestServiceValidation(t *testing.T) {
	svc, _ := newService(t, newFakeCatalog(product("mask", "10", 3)))
	ctx := context.Background()

	t.Run("empty session", func(t *testing.T) {
		_, err := svc.Store(ctx, "  ")
		assert.ErrorIs(t, err, app.ErrInvalidInput)
	})

	t.Run("empty product id", func(t *testing.T) {
		err := svc.AddItem(ctx, "s1", "", 1)
		assert.ErrorIs(t, err, app.ErrInvalidInput)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		err := svc.AddItem(ctx, "s1", "mask", 0)
		assert.ErrorIs(t, err, app.ErrInvalidQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := svc.AddItem(ctx, "s1", "ghost", 1)
		assert.ErrorIs(t, err, app.ErrProductNotFound)
	})
}

func TestMutationsPersist(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 3), product("glove", "2.5", 10))
	svc, repo := newService(t, cat)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "s1", "mask", 5))
	require.NoError(t, svc.AddItem(ctx, "s1", "glove", 2))

	lines, version, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	require.Len(t, lines, 2)
	assert.Equal(t, "mask", lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "glove", lines[1].ProductID)

	require.NoError(t, svc.SetQuantity(ctx, "s1", "glove", 0))
	lines, _, err = repo.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.NoError(t, svc.Clear(ctx, "s1"))
	lines, _, err = repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	view, err := svc.View(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, view.Subtotal.IsZero())
	assert.False(t, view.CanCheckout)
}

func TestSessionsAreIsolated(t *testing.T) {
	svc, _ := newService(t, newFakeCatalog(product("mask", "10", 3)))
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "s1", "mask", 1))

	lines, _, err := svc.Lines(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCrossTabWritesAreNotLost(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 100), product("glove", "1", 100))
	repo := kv.NewLineStore(memory.NewStore())
	ctx := context.Background()

	tabA, err := app.OpenStore(ctx, "s1", repo)
	require.NoError(t, err)
	tabB, err := app.OpenStore(ctx, "s1", repo)
	require.NoError(t, err)

	mask, _ := cat.Product(ctx, "mask")
	glove, _ := cat.Product(ctx, "glove")

	require.NoError(t, tabA.AddItem(ctx, mask, 1))
	// tabB still holds version 0 and must reload before applying.
	require.NoError(t, tabB.AddItem(ctx, glove, 2))

	lines, version, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	require.Len(t, lines, 2)
	assert.Equal(t, "mask", lines[0].ProductID)
	assert.Equal(t, "glove", lines[1].ProductID)
	assert.Len(t, tabB.Lines(), 2)
	assert.Equal(t, uint64(2), tabB.Version())
}

func TestConcurrentAddsAcrossStores(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 1000))
	repo := kv.NewLineStore(memory.NewStore())
	ctx := context.Background()
	mask, _ := cat.Product(ctx, "mask")

	stores := make([]*app.Store, 2)
	for i := range stores {
		st, err := app.OpenStore(ctx, "s1", repo)
		require.NoError(t, err)
		stores[i] = st
	}

	var g errgroup.Group
	for _, st := range stores {
		st := st
		g.Go(func() error {
			for i := 0; i < 2; i++ {
				if err := st.AddItem(ctx, mask, 1); err != nil && !errors.Is(err, app.ErrConflict) {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	lines, version, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int(version), lines[0].Quantity)
}

func TestSubscribe(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 3))
	svc, _ := newService(t, cat)
	ctx := context.Background()

	st, err := svc.Store(ctx, "s1")
	require.NoError(t, err)

	var got []app.Change
	unsubscribe := st.Subscribe(func(c app.Change) { got = append(got, c) })

	require.NoError(t, svc.AddItem(ctx, "s1", "mask", 1))
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, uint64(1), got[0].Version)
	require.Len(t, got[0].Lines, 1)

	unsubscribe()
	require.NoError(t, svc.RemoveItem(ctx, "s1", "mask"))
	assert.Len(t, got, 1)
}

func TestChangeHook(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 3))
	var versions []uint64
	svc, err := app.NewService(kv.NewLineStore(memory.NewStore()), cat, cat, 4,
		app.WithChangeHook(func(c app.Change) { versions = append(versions, c.Version) }))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, "s1", "mask", 1))
	require.NoError(t, svc.Clear(ctx, "s1"))
	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestViewReconcilesAgainstLiveStock(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 5))
	svc, _ := newService(t, cat)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "s1", "mask", 5))
	cat.setStock("mask", 3)

	view, err := svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Line.Quantity)
	assert.Equal(t, 3, view.Lines[0].EffectiveQuantity)
	assert.True(t, view.Lines[0].OverStock)
	assert.Equal(t, "Only 3 left in stock", view.Lines[0].Warning)
	assert.True(t, decimal.NewFromInt(30).Equal(view.Subtotal))
	assert.False(t, view.CanCheckout)
}

func TestViewOfEmptyCartSkipsStockFetch(t *testing.T) {
	cat := newFakeCatalog()
	svc, _ := newService(t, cat)

	view, err := svc.View(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Zero(t, cat.calls)
}

func TestViewDiscardsLateSnapshot(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 5))
	svc, _ := newService(t, cat)
	require.NoError(t, svc.AddItem(context.Background(), "s1", "mask", 1))

	cat.block = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := svc.View(ctx, "s1")
		done <- err
	}()

	cancel()
	close(cat.block)
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRepair(t *testing.T) {
	cat := newFakeCatalog(product("mask", "10", 5), product("glove", "2", 4))
	svc, _ := newService(t, cat)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "s1", "mask", 5))
	require.NoError(t, svc.AddItem(ctx, "s1", "glove", 2))
	cat.setStock("mask", 2)
	cat.setStock("glove", 0)

	view, err := svc.Repair(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "mask", view.Lines[0].Line.ProductID)
	assert.Equal(t, 2, view.Lines[0].Line.Quantity)
	assert.Equal(t, 2, view.Lines[0].Line.CachedStock)
	assert.False(t, view.Lines[0].OverStock)
	assert.True(t, view.CanCheckout)
	assert.True(t, decimal.NewFromInt(20).Equal(view.Subtotal))
}
