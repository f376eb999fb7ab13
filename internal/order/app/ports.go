package app

import (
	"context"

	"github.com/dwikikusuma/okhati-storefront/internal/order/domain"
)

type OrderRepo interface {
	CreateOrderTx(ctx context.Context, order domain.Order) (domain.Order, error)
	UpdateStatusByTransaction(ctx context.Context, transactionID, status string) error
	GetByTransaction(ctx context.Context, transactionID string) (domain.Order, error)
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error
}
