package app

import (
	"context"
	"fmt"

	orderdomain "github.com/dwikikusuma/okhati-storefront/internal/order/domain"
)

// RejectedError is a payment provider refusing a request.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment provider: status %d: %s", e.StatusCode, e.Message)
}

// Gateway is the hosted payment provider.
type Gateway interface {
	Initiate(ctx context.Context, p Payment) (Started, error)
	Lookup(ctx context.Context, pidx string) (Status, error)
}

// Payment amounts are in paisa.
type Payment struct {
	ReturnURL         string
	WebsiteURL        string
	Amount            int64
	PurchaseOrderID   string
	PurchaseOrderName string
	Customer          Customer
	Products          []Product
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Product struct {
	Identity   string
	Name       string
	TotalPrice int64
	Quantity   int
	UnitPrice  int64
}

type Started struct {
	Pidx       string
	PaymentURL string
}

type Status struct {
	Pidx          string
	Status        string
	TotalAmount   int64
	TransactionID string
	Fee           int64
	Refunded      bool
}

type OrderPlacer interface {
	CreateOrder(ctx context.Context, req orderdomain.CreateOrderRequest) (orderdomain.OrderResponse, error)
	MarkPayment(ctx context.Context, transactionID, gatewayStatus string) error
	GetByTransaction(ctx context.Context, transactionID string) (orderdomain.Order, error)
}
