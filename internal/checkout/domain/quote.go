package domain

import (
	"github.com/shopspring/decimal"
)

// QuoteLine is a cart line as it will be charged: the effective quantity
// and the unit price rounded to whole rupees.
type QuoteLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// Quote is the priced cart a checkout submits. CartVersion is the cart
// version it was built from.
type Quote struct {
	Lines       []QuoteLine
	Subtotal    int64
	CartVersion uint64
}

// RoundRupees rounds half away from zero, which for non-negative prices
// matches rounding half up.
func RoundRupees(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
