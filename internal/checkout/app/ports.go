package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
)

// CartReader reads the session's cart reconciled against live stock.
type CartReader interface {
	GetCart(ctx context.Context, sessionID string) (Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

type Cart struct {
	Lines       []CartLine
	Subtotal    decimal.Decimal
	CanCheckout bool
	Version     uint64
}

type CartLine struct {
	ProductID         string
	Name              string
	UnitPrice         decimal.Decimal
	EffectiveQuantity int
}

// UserReader returns ok=false when the session is signed out.
type UserReader interface {
	CurrentUser(ctx context.Context, sessionID string) (User, bool, error)
}

type User struct {
	ID       int64
	Name     string
	Email    string
	IsStaff  bool
	IsActive bool
}

// Gateway starts a payment. Failures are *domain.GatewayRejectedError,
// domain.ErrServerResponse or domain.ErrTransport.
type Gateway interface {
	Initiate(ctx context.Context, idempotencyKey string, req paymentapi.InitiationRequest) (Initiation, error)
}

type Initiation struct {
	PaymentURL string
	Pidx       string
	OrderID    string
}
