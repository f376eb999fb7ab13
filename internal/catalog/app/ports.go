package app

import (
	"context"

	"github.com/dwikikusuma/okhati-storefront/internal/catalog/domain"
)

// ProductSource is the Stock Oracle: the product REST API. Get returns
// ErrNotFound for products deleted from the catalog.
type ProductSource interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}
