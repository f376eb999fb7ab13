package app

import (
	"context"

	"github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
)

// LineStore persists a session's lines with a version stamp. Load returns
// (nil, 0, nil) for a session that has never saved. Save fails with
// ErrConflict when expected is not the stored version.
type LineStore interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartLine, uint64, error)
	Save(ctx context.Context, sessionID string, lines []domain.CartLine, expected uint64) (uint64, error)
}

type ProductReader interface {
	Product(ctx context.Context, productID string) (domain.Product, error)
}

type StockReader interface {
	Stock(ctx context.Context, productIDs []string) (domain.StockSnapshot, error)
}
