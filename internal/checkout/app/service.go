package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dwikikusuma/okhati-storefront/internal/checkout/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCannotCheckout       = errors.New("some items exceed available stock")
	ErrInvalidCart          = errors.New("cart data is invalid")
	ErrSubmissionInProgress = errors.New("a checkout is already in progress")
	ErrStockUnavailable     = errors.New("stock unavailable")
)

// Shipping is the fixed part of the shipping address.
type Shipping struct {
	City    string
	Country string
	Zip     string
}

// Result is what a submission ended in. Err is set when State is Failed.
type Result struct {
	State    domain.State
	Redirect *domain.Redirect
	Message  string
	Pidx     string
	OrderID  string
	Err      error
}

type ReturnResult struct {
	domain.Return
	Outcome     domain.Outcome
	Message     string
	CartCleared bool
}

type session struct {
	state       domain.State
	key         string
	fingerprint string
}

type Service struct {
	Cart    CartReader
	Users   UserReader
	Gateway Gateway

	shipping Shipping
	log      *slog.Logger

	mu       sync.Mutex
	sessions *lru.Cache[string, *session]
}

func NewService(cart CartReader, users UserReader, gateway Gateway, shipping Shipping, sessionCacheSize int, log *slog.Logger) (*Service, error) {
	if sessionCacheSize <= 0 {
		sessionCacheSize = 1024
	}
	sessions, err := lru.New[string, *session](sessionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("checkout session cache: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		Cart:     cart,
		Users:    users,
		Gateway:  gateway,
		shipping: shipping,
		log:      log,
		sessions: sessions,
	}, nil
}

// State reports where the session's checkout stands.
func (s *Service) State(sessionID string) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions.Get(sessionID); ok {
		return st.state
	}
	return domain.StateIdle
}

// Submit validates the form and the cart, then asks the payment backend to
// start a payment. Guard failures are returned as errors and leave the state
// untouched; backend failures come back as a Failed result.
func (s *Service) Submit(ctx context.Context, sessionID string, form domain.Form) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Result{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	user, _, err := s.Users.CurrentUser(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("current user: %w", err)
	}

	form = form.Normalize()
	if form.CustomerName == "" {
		form.CustomerName = user.Name
	}
	if form.CustomerEmail == "" {
		form.CustomerEmail = user.Email
	}
	if err := form.Validate(); err != nil {
		return Result{}, err
	}

	cart, err := s.Cart.GetCart(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	quote, err := buildQuote(cart)
	if err != nil {
		return Result{}, err
	}
	req := s.buildRequest(quote, form, user)

	key, err := s.begin(sessionID, quote.CartVersion, req)
	if err != nil {
		return Result{}, err
	}

	started, err := s.Gateway.Initiate(ctx, key, req)
	if err != nil {
		res := s.fail(sessionID, err)
		s.log.WarnContext(ctx, "checkout failed",
			slog.String("session_id", sessionID),
			slog.String("message", res.Message),
			slog.Any("err", err),
		)
		return res, nil
	}

	redirect := domain.NewRedirect(started.PaymentURL)
	s.finish(sessionID, domain.StateRedirecting)
	s.log.InfoContext(ctx, "checkout redirecting",
		slog.String("session_id", sessionID),
		slog.String("pidx", started.Pidx),
		slog.String("order_id", started.OrderID),
		slog.Bool("external", redirect.External),
	)

	return Result{
		State:    domain.StateRedirecting,
		Redirect: &redirect,
		Pidx:     started.Pidx,
		OrderID:  started.OrderID,
	}, nil
}

// HandleReturn interprets the status the gateway sent the customer back
// with. A Completed payment clears the session's cart.
func (s *Service) HandleReturn(ctx context.Context, sessionID string, q url.Values) (ReturnResult, error) {
	ret := domain.ParseReturn(q)
	outcome, msg := domain.Interpret(ret.Status)
	res := ReturnResult{Return: ret, Outcome: outcome, Message: msg}

	if outcome != domain.OutcomeCompleted {
		return res, nil
	}
	if err := s.Cart.ClearCart(ctx, sessionID); err != nil {
		return res, fmt.Errorf("clear cart after payment: %w", err)
	}
	res.CartCleared = true
	s.finish(sessionID, domain.StateIdle)

	s.log.InfoContext(ctx, "payment completed",
		slog.String("session_id", sessionID),
		slog.String("pidx", ret.Pidx),
		slog.String("transaction_id", ret.TransactionID),
	)
	return res, nil
}

// begin moves the session to Submitting and returns the idempotency key to
// send. The previous key is reused while the cart version and payload are
// unchanged.
func (s *Service) begin(sessionID string, version uint64, req paymentapi.InitiationRequest) (string, error) {
	fp, err := fingerprint(version, req)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions.Get(sessionID)
	if !ok {
		st = &session{}
		s.sessions.Add(sessionID, st)
	}
	if st.state == domain.StateSubmitting {
		return "", ErrSubmissionInProgress
	}
	if st.key == "" || st.fingerprint != fp {
		st.key = uuid.NewString()
		st.fingerprint = fp
	}
	st.state = domain.StateSubmitting
	return st.key, nil
}

func (s *Service) fail(sessionID string, err error) Result {
	s.mu.Lock()
	if st, ok := s.sessions.Get(sessionID); ok {
		st.state = domain.StateFailed
	}
	s.mu.Unlock()

	return Result{State: domain.StateFailed, Message: failureMessage(err), Err: err}
}

// finish ends a submission. Leaving Submitting for anything but Failed
// rotates the idempotency key.
func (s *Service) finish(sessionID string, state domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions.Get(sessionID); ok {
		st.state = state
		st.key = ""
		st.fingerprint = ""
	}
}

func failureMessage(err error) string {
	var rejected *domain.GatewayRejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Message
	case errors.Is(err, domain.ErrServerResponse):
		return domain.MsgServerResponse
	default:
		return domain.MsgTransportFailed
	}
}

func buildQuote(cart Cart) (domain.Quote, error) {
	if len(cart.Lines) == 0 {
		return domain.Quote{}, ErrEmptyCart
	}
	if !cart.CanCheckout {
		return domain.Quote{}, ErrCannotCheckout
	}

	lines := make([]domain.QuoteLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		if l.ProductID == "" || l.Name == "" || !l.UnitPrice.IsPositive() || l.EffectiveQuantity <= 0 {
			return domain.Quote{}, ErrInvalidCart
		}
		price := domain.RoundRupees(l.UnitPrice)
		lines = append(lines, domain.QuoteLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.EffectiveQuantity,
			UnitPrice: price,
			LineTotal: price * int64(l.EffectiveQuantity),
		})
	}

	return domain.Quote{
		Lines:       lines,
		Subtotal:    domain.RoundRupees(cart.Subtotal),
		CartVersion: cart.Version,
	}, nil
}

func (s *Service) buildRequest(q domain.Quote, form domain.Form, user User) paymentapi.InitiationRequest {
	items := make([]paymentapi.CartItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, paymentapi.CartItem{Name: l.Name, Quantity: l.Quantity, Price: l.UnitPrice})
	}

	return paymentapi.InitiationRequest{
		Token: paymentapi.Token{
			ID:    paymentapi.TokenKhalti,
			Email: form.CustomerEmail,
			Phone: form.CustomerPhone,
			Card: paymentapi.Card{
				AddressLine1:   form.CustomerAddress,
				AddressCity:    s.shipping.City,
				AddressCountry: s.shipping.Country,
				AddressZip:     s.shipping.Zip,
			},
		},
		CartItems: items,
		CurrentUser: paymentapi.User{
			ID:       user.ID,
			Name:     form.CustomerName,
			Email:    form.CustomerEmail,
			IsStaff:  user.IsStaff,
			IsActive: user.IsActive,
		},
		Subtotal: q.Subtotal,
	}
}

func fingerprint(version uint64, req paymentapi.InitiationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode initiation: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(version, 10)))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
