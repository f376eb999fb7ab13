package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	Image        string
	Category     string
	CountInStock int
}

// StockSnapshot maps product id to available stock as last fetched.
type StockSnapshot map[string]int
