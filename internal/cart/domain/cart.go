package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a session's cart. Quantity is clamped to
// CachedStock when written; CachedStock may be stale relative to the catalog.
type CartLine struct {
	ProductID   string
	Name        string
	UnitPrice   decimal.Decimal
	Quantity    int
	CachedStock int
}

// Product is what the cart needs to know about a catalog product when adding it.
type Product struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	CountInStock int
}

// AddItem merges requested units of p into lines. The quantity never exceeds
// p.CountInStock and no line with a non-positive quantity is kept.
func AddItem(lines []CartLine, p Product, requested int) []CartLine {
	out := slices.Clone(lines)
	stock := max(p.CountInStock, 0)

	if i := indexOf(out, p.ID); i >= 0 {
		q := min(out[i].Quantity+requested, stock)
		if q <= 0 {
			return slices.Delete(out, i, i+1)
		}
		out[i].Quantity = q
		out[i].CachedStock = stock
		return out
	}

	q := min(requested, stock)
	if q <= 0 {
		return out
	}
	return append(out, CartLine{
		ProductID:   p.ID,
		Name:        p.Name,
		UnitPrice:   p.Price,
		Quantity:    q,
		CachedStock: stock,
	})
}

// SetQuantity sets a line's quantity, clamped to its cached stock. A
// non-positive quantity removes the line. Unknown ids are ignored.
func SetQuantity(lines []CartLine, productID string, quantity int) []CartLine {
	if quantity <= 0 {
		return RemoveItem(lines, productID)
	}
	out := slices.Clone(lines)
	i := indexOf(out, productID)
	if i < 0 {
		return out
	}
	q := min(quantity, out[i].CachedStock)
	if q <= 0 {
		return slices.Delete(out, i, i+1)
	}
	out[i].Quantity = q
	return out
}

func RemoveItem(lines []CartLine, productID string) []CartLine {
	return slices.DeleteFunc(slices.Clone(lines), func(l CartLine) bool {
		return l.ProductID == productID
	})
}

func indexOf(lines []CartLine, productID string) int {
	return slices.IndexFunc(lines, func(l CartLine) bool { return l.ProductID == productID })
}
