package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	orderdomain "github.com/dwikikusuma/okhati-storefront/internal/order/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
)

var (
	ErrInvalidInput = errors.New("invalid payment request")
	// ErrKeyReused means an idempotency key arrived with a different body.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

type Service struct {
	gateway Gateway
	orders  OrderPlacer
	baseURL string
	log     *slog.Logger

	done   *cache.Cache
	flight singleflight.Group
}

type completed struct {
	fingerprint string
	resp        paymentapi.InitiationResponse
}

// NewService returns a payment service that builds return links from
// baseURL. Successful initiations are remembered per idempotency key for
// keyTTL.
func NewService(gateway Gateway, orders OrderPlacer, baseURL string, keyTTL time.Duration, log *slog.Logger) (*Service, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("payment: base url is required")
	}
	if keyTTL <= 0 {
		keyTTL = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gateway: gateway,
		orders:  orders,
		baseURL: baseURL,
		log:     log,
		done:    cache.New(keyTTL, keyTTL/2),
	}, nil
}

// Initiate starts a hosted payment and records a pending order for it.
// Requests sharing a non-empty key run once; later calls with the same key
// and body get the first successful response back.
func (s *Service) Initiate(ctx context.Context, key string, req paymentapi.InitiationRequest) (paymentapi.InitiationResponse, error) {
	if err := validate(req); err != nil {
		return paymentapi.InitiationResponse{}, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return s.initiate(ctx, req)
	}

	fp, err := fingerprint(req)
	if err != nil {
		return paymentapi.InitiationResponse{}, err
	}
	if c, ok := s.remembered(key); ok {
		return c.replay(fp)
	}

	// Duplicates share the first caller's flight; it runs to completion even
	// if that caller goes away.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		if c, ok := s.remembered(key); ok {
			return c, nil
		}
		resp, err := s.initiate(flightCtx, req)
		if err != nil {
			return nil, err
		}
		c := completed{fingerprint: fp, resp: resp}
		s.done.SetDefault(key, c)
		return c, nil
	})
	if err != nil {
		return paymentapi.InitiationResponse{}, err
	}
	return v.(completed).replay(fp)
}

func (c completed) replay(fp string) (paymentapi.InitiationResponse, error) {
	if c.fingerprint != fp {
		return paymentapi.InitiationResponse{}, ErrKeyReused
	}
	return c.resp, nil
}

func (s *Service) remembered(key string) (completed, bool) {
	v, ok := s.done.Get(key)
	if !ok {
		return completed{}, false
	}
	return v.(completed), true
}

func (s *Service) initiate(ctx context.Context, req paymentapi.InitiationRequest) (paymentapi.InitiationResponse, error) {
	purchaseOrderID := "order_" + uuid.NewString()

	names := make([]string, 0, len(req.CartItems))
	products := make([]Product, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		names = append(names, item.Name)
		products = append(products, Product{
			Identity:   purchaseOrderID,
			Name:       item.Name,
			TotalPrice: item.Price * int64(item.Quantity) * 100,
			Quantity:   item.Quantity,
			UnitPrice:  item.Price * 100,
		})
	}

	phone := strings.TrimSpace(req.Token.Phone)
	if phone == "" {
		phone = req.Token.Email
	}

	started, err := s.gateway.Initiate(ctx, Payment{
		ReturnURL:         s.baseURL + "/payment-status",
		WebsiteURL:        s.baseURL,
		Amount:            req.Subtotal * 100,
		PurchaseOrderID:   purchaseOrderID,
		PurchaseOrderName: strings.Join(names, ", "),
		Customer: Customer{
			Name:  req.CurrentUser.Name,
			Email: req.CurrentUser.Email,
			Phone: phone,
		},
		Products: products,
	})
	if err != nil {
		return paymentapi.InitiationResponse{}, fmt.Errorf("initiate payment: %w", err)
	}

	order, err := s.orders.CreateOrder(ctx, orderRequest(req, started.Pidx))
	if err != nil {
		s.log.ErrorContext(ctx, "order not recorded for started payment",
			slog.String("pidx", started.Pidx),
			slog.String("purchase_order_id", purchaseOrderID),
			slog.Any("err", err),
		)
		return paymentapi.InitiationResponse{}, fmt.Errorf("record order: %w", err)
	}

	s.log.InfoContext(ctx, "payment initiated",
		slog.String("pidx", started.Pidx),
		slog.String("order_id", order.ID),
		slog.Int64("amount", req.Subtotal),
	)

	return paymentapi.InitiationResponse{
		Success:    true,
		PaymentURL: started.PaymentURL,
		Pidx:       started.Pidx,
		OrderID:    order.ID,
	}, nil
}

// Lookup asks the gateway for the payment's state and moves the matching
// order along with it.
func (s *Service) Lookup(ctx context.Context, pidx string) (paymentapi.LookupResponse, error) {
	pidx = strings.TrimSpace(pidx)
	if pidx == "" {
		return paymentapi.LookupResponse{}, fmt.Errorf("%w: pidx is required", ErrInvalidInput)
	}

	st, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		return paymentapi.LookupResponse{}, fmt.Errorf("lookup payment: %w", err)
	}

	resp := paymentapi.LookupResponse{
		Pidx:          st.Pidx,
		Status:        st.Status,
		TotalAmount:   st.TotalAmount,
		TransactionID: st.TransactionID,
		Fee:           st.Fee,
		Refunded:      st.Refunded,
	}
	if resp.Pidx == "" {
		resp.Pidx = pidx
	}

	if err := s.orders.MarkPayment(ctx, pidx, st.Status); err != nil {
		s.log.WarnContext(ctx, "order status not updated",
			slog.String("pidx", pidx),
			slog.String("status", st.Status),
			slog.Any("err", err),
		)
		return resp, nil
	}
	if order, err := s.orders.GetByTransaction(ctx, pidx); err == nil {
		resp.OrderID = order.ID
		resp.OrderStatus = order.Status
	}
	return resp, nil
}

func validate(req paymentapi.InitiationRequest) error {
	if req.Token.ID != paymentapi.TokenKhalti {
		return fmt.Errorf("%w: unsupported payment method %q", ErrInvalidInput, req.Token.ID)
	}
	if len(req.CartItems) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}
	for i, item := range req.CartItems {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d: name is required", ErrInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidInput, i)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: item %d: price cannot be negative", ErrInvalidInput, i)
		}
	}
	if req.Subtotal <= 0 {
		return fmt.Errorf("%w: subtotal must be positive", ErrInvalidInput)
	}
	if items := orderItems(req); !orderdomain.SubtotalMatches(req.Subtotal, items) {
		total, _ := orderdomain.ItemsTotal(items)
		return fmt.Errorf("%w: subtotal %d does not match items total %d", ErrInvalidInput, req.Subtotal, total)
	}
	if strings.TrimSpace(req.CurrentUser.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(req.CurrentUser.Email); err != nil {
		return fmt.Errorf("%w: customer email: %v", ErrInvalidInput, err)
	}
	return nil
}

func orderItems(req paymentapi.InitiationRequest) []orderdomain.OrderItemRequest {
	items := make([]orderdomain.OrderItemRequest, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		items = append(items, orderdomain.OrderItemRequest{
			Name:       item.Name,
			UnitAmount: item.Price,
			Quantity:   int32(item.Quantity),
		})
	}
	return items
}

func orderRequest(req paymentapi.InitiationRequest, pidx string) orderdomain.CreateOrderRequest {
	return orderdomain.CreateOrderRequest{
		UserID:        req.CurrentUser.ID,
		CustomerName:  req.CurrentUser.Name,
		Email:         req.CurrentUser.Email,
		TransactionID: pidx,
		Subtotal:      req.Subtotal,
		Shipping: orderdomain.ShippingAddress{
			Address:    req.Token.Card.AddressLine1,
			City:       req.Token.Card.AddressCity,
			Country:    req.Token.Card.AddressCountry,
			PostalCode: req.Token.Card.AddressZip,
		},
		Items: orderItems(req),
	}
}

func fingerprint(req paymentapi.InitiationRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
