package adapter

import (
	"context"
	"errors"
	"fmt"

	cartapp "github.com/dwikikusuma/okhati-storefront/internal/cart/app"
	checkoutapp "github.com/dwikikusuma/okhati-storefront/internal/checkout/app"
)

type CartServiceReader struct {
	svc *cartapp.Service
}

func NewCartServiceReader(svc *cartapp.Service) *CartServiceReader {
	return &CartServiceReader{svc: svc}
}

var _ checkoutapp.CartReader = (*CartServiceReader)(nil)

func (r *CartServiceReader) GetCart(ctx context.Context, sessionID string) (checkoutapp.Cart, error) {
	view, err := r.svc.View(ctx, sessionID)
	if errors.Is(err, cartapp.ErrCatalogUnavailable) {
		return checkoutapp.Cart{}, fmt.Errorf("%w: %w", checkoutapp.ErrStockUnavailable, err)
	}
	if err != nil {
		return checkoutapp.Cart{}, err
	}

	lines := make([]checkoutapp.CartLine, 0, len(view.Lines))
	for _, ls := range view.Lines {
		lines = append(lines, checkoutapp.CartLine{
			ProductID:         ls.Line.ProductID,
			Name:              ls.Line.Name,
			UnitPrice:         ls.Line.UnitPrice,
			EffectiveQuantity: ls.EffectiveQuantity,
		})
	}
	return checkoutapp.Cart{
		Lines:       lines,
		Subtotal:    view.Subtotal,
		CanCheckout: view.CanCheckout,
		Version:     view.Version,
	}, nil
}

func (r *CartServiceReader) ClearCart(ctx context.Context, sessionID string) error {
	return r.svc.Clear(ctx, sessionID)
}
