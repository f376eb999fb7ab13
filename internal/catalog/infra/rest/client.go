package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/okhati-storefront/internal/catalog/app"
	"github.com/dwikikusuma/okhati-storefront/internal/catalog/domain"
)

const maxBody = 4 << 20

// ErrMalformed marks a product payload that does not have the expected shape.
var ErrMalformed = errors.New("malformed product payload")

// Client reads products from the catalog REST API. GETs are retried with
// exponential backoff on transport errors and 5xx responses.
type Client struct {
	base       *url.URL
	http       *http.Client
	maxRetries uint64
}

func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("catalog url: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, http: hc, maxRetries: 3}, nil
}

func (c *Client) Get(ctx context.Context, id string) (domain.Product, error) {
	body, err := c.get(ctx, "/api/products/"+url.PathEscape(id))
	if err != nil {
		return domain.Product{}, err
	}
	var dto productDTO
	if err := decodeStrict(body, &dto); err != nil {
		return domain.Product{}, err
	}
	return dto.toDomain()
}

func (c *Client) List(ctx context.Context) ([]domain.Product, error) {
	body, err := c.get(ctx, "/api/products")
	if err != nil {
		return nil, err
	}
	var dtos []productDTO
	if err := decodeStrict(body, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(dtos))
	for i, dto := range dtos {
		p, err := dto.toDomain()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	target := c.base.JoinPath(path).String()

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(app.ErrNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("catalog %s: status %d", path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("catalog %s: status %d", path, resp.StatusCode))
		}
		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return body, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	return nil
}

type productDTO struct {
	ID           json.RawMessage `json:"id"`
	Name         *string         `json:"name"`
	Price        *json.Number    `json:"price"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
	CountInStock *json.Number    `json:"countInStock"`
}

// toDomain validates every field the cart depends on; a product without an
// id, name, price or integral stock count is rejected.
func (d productDTO) toDomain() (domain.Product, error) {
	id, err := decodeID(d.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if d.Name == nil || strings.TrimSpace(*d.Name) == "" {
		return domain.Product{}, fmt.Errorf("%w: product %s has no name", ErrMalformed, id)
	}
	if d.Price == nil {
		return domain.Product{}, fmt.Errorf("%w: product %s has no price", ErrMalformed, id)
	}
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil || price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: product %s price %q", ErrMalformed, id, d.Price.String())
	}
	if d.CountInStock == nil {
		return domain.Product{}, fmt.Errorf("%w: product %s has no countInStock", ErrMalformed, id)
	}
	stock, err := d.CountInStock.Int64()
	if err != nil || stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: product %s countInStock %q", ErrMalformed, id, d.CountInStock.String())
	}

	return domain.Product{
		ID:           id,
		Name:         *d.Name,
		Price:        price,
		Image:        d.Image,
		Category:     d.Category,
		CountInStock: int(stock),
	}, nil
}

// decodeID accepts string or integer ids; the catalog backend uses integers.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: missing id", ErrMalformed)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: empty id", ErrMalformed)
		}
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: id %s", ErrMalformed, raw)
	}
	if _, err := n.Int64(); err != nil {
		return "", fmt.Errorf("%w: id %s", ErrMalformed, raw)
	}
	return n.String(), nil
}
