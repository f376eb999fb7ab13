package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StockSnapshot maps product id to live available stock. Products absent
// from the snapshot have zero stock.
type StockSnapshot map[string]int

func (s StockSnapshot) Stock(productID string) int {
	return max(s[productID], 0)
}

// EffectiveQuantity is the part of the line that can actually be charged.
func EffectiveQuantity(line CartLine, snap StockSnapshot) int {
	return max(min(line.Quantity, snap.Stock(line.ProductID)), 0)
}

func IsOverStock(line CartLine, snap StockSnapshot) bool {
	return line.Quantity > snap.Stock(line.ProductID)
}

// Subtotal sums unit price times effective quantity. Units beyond live stock
// are never counted.
func Subtotal(lines []CartLine, snap StockSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(EffectiveQuantity(l, snap)))))
	}
	return total
}

func CanCheckout(lines []CartLine, snap StockSnapshot) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if IsOverStock(l, snap) {
			return false
		}
	}
	return true
}

type LineStatus struct {
	Line              CartLine
	Available         int
	EffectiveQuantity int
	OverStock         bool
	Warning           string
	LineTotal         decimal.Decimal
}

type Reconciliation struct {
	Lines       []LineStatus
	Subtotal    decimal.Decimal
	CanCheckout bool
}

// Reconcile evaluates every line against snap. Requested quantities are
// reported as-is next to the effective ones.
func Reconcile(lines []CartLine, snap StockSnapshot) Reconciliation {
	out := Reconciliation{
		Lines:       make([]LineStatus, 0, len(lines)),
		Subtotal:    Subtotal(lines, snap),
		CanCheckout: CanCheckout(lines, snap),
	}
	for _, l := range lines {
		eff := EffectiveQuantity(l, snap)
		st := LineStatus{
			Line:              l,
			Available:         snap.Stock(l.ProductID),
			EffectiveQuantity: eff,
			OverStock:         IsOverStock(l, snap),
			LineTotal:         l.UnitPrice.Mul(decimal.NewFromInt(int64(eff))),
		}
		if st.OverStock {
			st.Warning = stockWarning(st.Available)
		}
		out.Lines = append(out.Lines, st)
	}
	return out
}

func stockWarning(available int) string {
	if available == 0 {
		return "Out of stock"
	}
	return fmt.Sprintf("Only %d left in stock", available)
}

// Repair caps every line to live stock, refreshes the cached stock and drops
// lines that can no longer be fulfilled at all.
func Repair(lines []CartLine, snap StockSnapshot) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		stock := snap.Stock(l.ProductID)
		if stock == 0 {
			continue
		}
		l.CachedStock = stock
		l.Quantity = min(l.Quantity, stock)
		out = append(out, l)
	}
	return out
}
