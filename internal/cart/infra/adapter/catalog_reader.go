package adapter

import (
	"context"
	"errors"
	"fmt"

	cartapp "github.com/dwikikusuma/okhati-storefront/internal/cart/app"
	cartdomain "github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
	catalogapp "github.com/dwikikusuma/okhati-storefront/internal/catalog/app"
)

// CatalogServiceReader serves the cart's product and stock reads from the
// catalog service.
type CatalogServiceReader struct {
	svc *catalogapp.Service
}

func NewCatalogServiceReader(svc *catalogapp.Service) *CatalogServiceReader {
	return &CatalogServiceReader{svc: svc}
}

var (
	_ cartapp.ProductReader = (*CatalogServiceReader)(nil)
	_ cartapp.StockReader   = (*CatalogServiceReader)(nil)
)

func (r *CatalogServiceReader) Product(ctx context.Context, productID string) (cartdomain.Product, error) {
	p, err := r.svc.GetProduct(ctx, productID)
	if errors.Is(err, catalogapp.ErrNotFound) {
		return cartdomain.Product{}, fmt.Errorf("%w: %s", cartapp.ErrProductNotFound, productID)
	}
	if err != nil {
		return cartdomain.Product{}, fmt.Errorf("%w: %w", cartapp.ErrCatalogUnavailable, err)
	}

	return cartdomain.Product{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		CountInStock: p.CountInStock,
	}, nil
}

// Stock always reads live counts; the reconciler must not see cached stock.
func (r *CatalogServiceReader) Stock(ctx context.Context, productIDs []string) (cartdomain.StockSnapshot, error) {
	snap, err := r.svc.LiveSnapshot(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	return cartdomain.StockSnapshot(snap), nil
}
