package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(id string, price string, qty, cached int) CartLine {
	return CartLine{ProductID: id, Name: id, UnitPrice: decimal.RequireFromString(price), Quantity: qty, CachedStock: cached}
}

func TestOverStockScenario(t *testing.T) {
	a := line("productA", "100", 5, 5)
	snap := StockSnapshot{"productA": 3}

	assert.Equal(t, 3, EffectiveQuantity(a, snap))
	assert.True(t, IsOverStock(a, snap))
	assert.False(t, CanCheckout([]CartLine{a}, snap))
	assert.True(t, Subtotal([]CartLine{a}, snap).Equal(decimal.NewFromInt(300)))
}

func TestDeletedProductIsZeroStock(t *testing.T) {
	gone := line("gone", "40", 2, 9)
	snap := StockSnapshot{}

	assert.Equal(t, 0, EffectiveQuantity(gone, snap))
	assert.True(t, IsOverStock(gone, snap))
	assert.True(t, Subtotal([]CartLine{gone}, snap).IsZero())
}

func TestSubtotalNeverCountsBeyondStock(t *testing.T) {
	lines := []CartLine{
		line("a", "12.50", 4, 4),
		line("b", "3.25", 10, 10),
		line("c", "99", 1, 1),
	}
	snaps := []StockSnapshot{
		{},
		{"a": 4, "b": 10, "c": 1},
		{"a": 1, "b": 0, "c": 7},
		{"a": 100, "b": 3},
	}
	for _, snap := range snaps {
		want := decimal.Zero
		for _, l := range lines {
			q := min(l.Quantity, snap[l.ProductID])
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(q))))
		}
		assert.True(t, Subtotal(lines, snap).Equal(want), "snapshot %v", snap)
	}
}

func TestCanCheckout(t *testing.T) {
	assert.False(t, CanCheckout(nil, StockSnapshot{"a": 5}), "empty cart")
	assert.True(t, CanCheckout([]CartLine{line("a", "1", 5, 5)}, StockSnapshot{"a": 5}), "exactly at stock")
	assert.False(t, CanCheckout([]CartLine{line("a", "1", 5, 5), line("b", "1", 2, 2)}, StockSnapshot{"a": 5, "b": 1}))
}

func TestReconcile(t *testing.T) {
	lines := []CartLine{line("a", "10", 5, 5), line("b", "2.5", 2, 2), line("c", "1", 1, 1)}
	r := Reconcile(lines, StockSnapshot{"a": 3, "b": 2})

	assert.False(t, r.CanCheckout)
	assert.True(t, r.Subtotal.Equal(decimal.NewFromInt(35)))

	a := r.Lines[0]
	assert.Equal(t, 5, a.Line.Quantity, "requested quantity is kept for display")
	assert.Equal(t, 3, a.EffectiveQuantity)
	assert.True(t, a.OverStock)
	assert.Equal(t, "Only 3 left in stock", a.Warning)
	assert.True(t, a.LineTotal.Equal(decimal.NewFromInt(30)))

	assert.False(t, r.Lines[1].OverStock)
	assert.Empty(t, r.Lines[1].Warning)

	assert.Equal(t, "Out of stock", r.Lines[2].Warning)
}

func TestRepair(t *testing.T) {
	lines := []CartLine{line("a", "10", 5, 5), line("b", "2", 2, 2), line("c", "1", 1, 1)}
	got := Repair(lines, StockSnapshot{"a": 3, "b": 8})

	if assert.Len(t, got, 2) {
		assert.Equal(t, 3, got[0].Quantity)
		assert.Equal(t, 3, got[0].CachedStock)
		assert.Equal(t, 2, got[1].Quantity)
		assert.Equal(t, 8, got[1].CachedStock)
	}
	assert.True(t, CanCheckout(got, StockSnapshot{"a": 3, "b": 8}))
	assert.Equal(t, 5, lines[0].Quantity, "input untouched")
}

func TestClearedCart(t *testing.T) {
	snap := StockSnapshot{"a": 3}
	assert.True(t, Subtotal(nil, snap).IsZero())
	assert.False(t, CanCheckout(nil, snap))
}
