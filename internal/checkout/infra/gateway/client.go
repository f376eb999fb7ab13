package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dwikikusuma/okhati-storefront/internal/checkout/app"
	"github.com/dwikikusuma/okhati-storefront/internal/checkout/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
)

const maxResponseBytes = 1 << 20

// Client posts initiation requests to the payment backend. Requests are
// never retried; the idempotency key lets the caller resubmit safely.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

var _ app.Gateway = (*Client)(nil)

func (c *Client) Initiate(ctx context.Context, idempotencyKey string, req paymentapi.InitiationRequest) (app.Initiation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return app.Initiation{}, fmt.Errorf("encode initiation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paymentapi.InitiatePath, bytes.NewReader(body))
	if err != nil {
		return app.Initiation{}, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set(paymentapi.IdempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return app.Initiation{}, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return app.Initiation{}, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	// The status code is not consulted: the body alone says whether the
	// payment started.
	return decodeInitiation(raw)
}

type initiationBody struct {
	Success    *bool           `json:"success"`
	PaymentURL json.RawMessage `json:"payment_url"`
	Error      json.RawMessage `json:"error"`
	Detail     json.RawMessage `json:"detail"`
	Pidx       json.RawMessage `json:"pidx"`
	OrderID    json.RawMessage `json:"order_id"`
}

// decodeInitiation turns a backend body into an Initiation or one of the
// checkout failures. Anything it cannot account for is a server error.
func decodeInitiation(raw []byte) (app.Initiation, error) {
	var body initiationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return app.Initiation{}, fmt.Errorf("%w: %w", domain.ErrServerResponse, err)
	}

	if body.Success == nil || !*body.Success {
		msg := firstString(body.Error, body.Detail)
		if msg == "" {
			msg = domain.MsgInitiationFailed
		}
		return app.Initiation{}, &domain.GatewayRejectedError{Message: msg}
	}

	paymentURL := firstString(body.PaymentURL)
	if !usableRedirect(paymentURL) {
		return app.Initiation{}, fmt.Errorf("%w: missing or unusable payment_url", domain.ErrServerResponse)
	}

	return app.Initiation{
		PaymentURL: paymentURL,
		Pidx:       firstString(body.Pidx),
		OrderID:    scalar(body.OrderID),
	}, nil
}

// firstString returns the first field that holds a non-empty JSON string.
func firstString(fields ...json.RawMessage) string {
	for _, f := range fields {
		var s string
		if len(f) == 0 || json.Unmarshal(f, &s) != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// scalar reads a string or a number as text.
func scalar(f json.RawMessage) string {
	if s := firstString(f); s != "" {
		return s
	}
	var n json.Number
	if len(f) > 0 && json.Unmarshal(f, &n) == nil {
		return n.String()
	}
	return ""
}

func usableRedirect(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "http") {
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}
	// "//host" and "/\host" are protocol-relative to a browser, not in-app.
	return strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") && !strings.HasPrefix(s, "/\\")
}
