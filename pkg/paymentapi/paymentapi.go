// Package paymentapi is the JSON contract between the storefront and the
// payment backend.
package paymentapi

const (
	InitiatePath         = "/api/initiate"
	PaymentsPath         = "/api/payments"
	IdempotencyKeyHeader = "Idempotency-Key"

	// TokenKhalti is the only payment method the backend accepts.
	TokenKhalti = "khalti"
)

type Card struct {
	AddressLine1   string `json:"address_line1"`
	AddressCity    string `json:"address_city"`
	AddressCountry string `json:"address_country"`
	AddressZip     string `json:"address_zip"`
}

type Token struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Card  Card   `json:"card"`
}

// CartItem prices are whole rupees.
type CartItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
	IsActive bool   `json:"is_active"`
}

type InitiationRequest struct {
	Token       Token      `json:"token"`
	CartItems   []CartItem `json:"cartItems"`
	CurrentUser User       `json:"currentUser"`
	Subtotal    int64      `json:"subtotal"`
}

// InitiationResponse is returned with 200 on success and 400 when the
// payment could not be started.
type InitiationResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url,omitempty"`
	Error      string `json:"error,omitempty"`
	Pidx       string `json:"pidx,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
}

type LookupResponse struct {
	Pidx          string `json:"pidx"`
	Status        string `json:"status"`
	TotalAmount   int64  `json:"total_amount"`
	TransactionID string `json:"transaction_id,omitempty"`
	Fee           int64  `json:"fee"`
	Refunded      bool   `json:"refunded"`
	OrderID       string `json:"order_id,omitempty"`
	OrderStatus   string `json:"order_status,omitempty"`
}
