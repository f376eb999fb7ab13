package domain

import "time"

const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"

	CurrencyNPR = "NPR"
)

type Order struct {
	ID             string
	UserID         int64
	CustomerName   string
	Email          string
	Status         string
	Currency       string
	TransactionID  string
	SubTotalAmount int64
	TotalAmount    int64
	Shipping       ShippingAddress
	OrderItems     []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID              string
	OrderID         string
	Name            string
	UnitAmount      int64
	Quantity        int32
	LineTotalAmount int64
}

type ShippingAddress struct {
	Address    string
	City       string
	Country    string
	PostalCode string
}

// CreateOrderRequest is an order as the checkout submitted it. Subtotal is
// the amount the customer is charged.
type CreateOrderRequest struct {
	UserID        int64
	CustomerName  string
	Email         string
	TransactionID string
	Subtotal      int64
	Shipping      ShippingAddress
	Items         []OrderItemRequest
}

type OrderItemRequest struct {
	Name       string
	UnitAmount int64
	Quantity   int32
}

type OrderResponse struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	TotalAmount   int64     `json:"total_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderPlaced is published once an order is stored.
type OrderPlaced struct {
	OrderID       string           `json:"order_id"`
	UserID        int64            `json:"user_id"`
	Email         string           `json:"email"`
	TransactionID string           `json:"transaction_id"`
	Currency      string           `json:"currency"`
	TotalAmount   int64            `json:"total_amount"`
	Items         []OrderPlacedRow `json:"items"`
	PlacedAt      time.Time        `json:"placed_at"`
}

type OrderPlacedRow struct {
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}
