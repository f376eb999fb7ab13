package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/dwikikusuma/okhati-storefront/internal/payment/app"
)

const maxResponseBytes = 1 << 20

var ErrMalformed = errors.New("khalti: malformed response")

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secretKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), secret: secretKey, http: hc}
}

var _ app.Gateway = (*Client)(nil)

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type productDetail struct {
	Identity   string `json:"identity"`
	Name       string `json:"name"`
	TotalPrice int64  `json:"total_price"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
}

type initiateRequest struct {
	ReturnURL         string          `json:"return_url"`
	WebsiteURL        string          `json:"website_url"`
	Amount            int64           `json:"amount"`
	PurchaseOrderID   string          `json:"purchase_order_id"`
	PurchaseOrderName string          `json:"purchase_order_name"`
	CustomerInfo      customerInfo    `json:"customer_info"`
	ProductDetails    []productDetail `json:"product_details"`
}

type initiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
}

type lookupResponse struct {
	Pidx          string  `json:"pidx"`
	TotalAmount   int64   `json:"total_amount"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id"`
	Fee           int64   `json:"fee"`
	Refunded      bool    `json:"refunded"`
}

func (c *Client) Initiate(ctx context.Context, p app.Payment) (app.Started, error) {
	products := make([]productDetail, 0, len(p.Products))
	for _, pr := range p.Products {
		products = append(products, productDetail(pr))
	}
	req := initiateRequest{
		ReturnURL:         p.ReturnURL,
		WebsiteURL:        p.WebsiteURL,
		Amount:            p.Amount,
		PurchaseOrderID:   p.PurchaseOrderID,
		PurchaseOrderName: p.PurchaseOrderName,
		CustomerInfo:      customerInfo(p.Customer),
		ProductDetails:    products,
	}

	var resp initiateResponse
	if err := c.post(ctx, "/epayment/initiate/", req, &resp); err != nil {
		return app.Started{}, err
	}
	if resp.Pidx == "" || resp.PaymentURL == "" {
		return app.Started{}, fmt.Errorf("%w: initiate without pidx or payment_url", ErrMalformed)
	}
	return app.Started{Pidx: resp.Pidx, PaymentURL: resp.PaymentURL}, nil
}

func (c *Client) Lookup(ctx context.Context, pidx string) (app.Status, error) {
	var resp lookupResponse
	if err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &resp); err != nil {
		return app.Status{}, err
	}
	if resp.Status == "" {
		return app.Status{}, fmt.Errorf("%w: lookup without status", ErrMalformed)
	}

	st := app.Status{
		Pidx:        resp.Pidx,
		Status:      resp.Status,
		TotalAmount: resp.TotalAmount,
		Fee:         resp.Fee,
		Refunded:    resp.Refunded,
	}
	if resp.TransactionID != nil {
		st.TransactionID = *resp.TransactionID
	}
	return st, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "key "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("khalti %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("khalti %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &app.RejectedError{StatusCode: resp.StatusCode, Message: errorDetail(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// errorDetail pulls a readable message out of a Khalti error body, which
// carries either "detail" or per-field lists next to "error_key".
func errorDetail(raw []byte) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}

	var detail string
	if err := json.Unmarshal(body["detail"], &detail); err == nil && detail != "" {
		return detail
	}

	var parts []string
	for field, v := range body {
		if field == "error_key" {
			continue
		}
		var msgs []string
		if json.Unmarshal(v, &msgs) == nil && len(msgs) > 0 {
			parts = append(parts, field+": "+strings.Join(msgs, ", "))
		}
	}
	if len(parts) > 0 {
		slices.Sort(parts)
		return strings.Join(parts, "; ")
	}
	return strings.TrimSpace(string(raw))
}
