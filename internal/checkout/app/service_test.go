package app

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/okhati-storefront/internal/checkout/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
)

type fakeCart struct {
	mu      sync.Mutex
	cart    Cart
	cleared int
}

func (f *fakeCart) GetCart(context.Context, string) (Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart, nil
}

func (f *fakeCart) ClearCart(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.cart = Cart{Version: f.cart.Version + 1}
	return nil
}

type fakeUsers struct {
	user User
	ok   bool
}

func (f fakeUsers) CurrentUser(context.Context, string) (User, bool, error) {
	return f.user, f.ok, nil
}

type gatewayCall struct {
	key string
	req paymentapi.InitiationRequest
}

type fakeGateway struct {
	url     string
	mu      sync.Mutex
	calls   []gatewayCall
	results []error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGateway) Initiate(_ context.Context, key string, req paymentapi.InitiationRequest) (Initiation, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gatewayCall{key: key, req: req})

	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		if err != nil {
			return Initiation{}, err
		}
	}
	paymentURL := f.url
	if paymentURL == "" {
		paymentURL = "https://pay.khalti.com/?pidx=p1"
	}
	return Initiation{PaymentURL: paymentURL, Pidx: "p1", OrderID: "1"}, nil
}

func cartWith(version uint64, lines ...CartLine) Cart {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.EffectiveQuantity))))
	}
	return Cart{Lines: lines, Subtotal: subtotal, CanCheckout: len(lines) > 0, Version: version}
}

func maskLine(qty int) CartLine {
	return CartLine{ProductID: "mask", Name: "N95 Mask", UnitPrice: decimal.RequireFromString("120.6"), EffectiveQuantity: qty}
}

func form() domain.Form {
	return domain.Form{
		CustomerName:    "Sita Rai",
		CustomerEmail:   "sita@example.com",
		CustomerPhone:   "9800000000",
		CustomerAddress: "Baneshwor",
	}
}

func newTestService(t *testing.T, cart *fakeCart, users fakeUsers, gw *fakeGateway) *Service {
	t.Helper()
	svc, err := NewService(cart, users, gw, Shipping{City: "Kathmandu", Country: "Nepal", Zip: "44600"}, 8, nil)
	require.NoError(t, err)
	return svc
}

func TestSubmitBuildsPayload(t *testing.T) {
	cart := &fakeCart{cart: cartWith(3,
		maskLine(2),
		CartLine{ProductID: "glove", Name: "Gloves", UnitPrice: decimal.RequireFromString("9.5"), EffectiveQuantity: 1},
	)}
	gw := &fakeGateway{}
	users := fakeUsers{user: User{ID: 7, Name: "Old Name", Email: "old@example.com", IsActive: true}, ok: true}
	svc := newTestService(t, cart, users, gw)

	res, err := svc.Submit(context.Background(), "s1", form())
	require.NoError(t, err)
	assert.Equal(t, domain.StateRedirecting, res.State)
	require.NotNil(t, res.Redirect)
	assert.True(t, res.Redirect.External)
	assert.Equal(t, "p1", res.Pidx)

	require.Len(t, gw.calls, 1)
	assert.NotEmpty(t, gw.calls[0].key)
	assert.Equal(t, paymentapi.InitiationRequest{
		Token: paymentapi.Token{
			ID:    "khalti",
			Email: "sita@example.com",
			Phone: "9800000000",
			Card: paymentapi.Card{
				AddressLine1:   "Baneshwor",
				AddressCity:    "Kathmandu",
				AddressCountry: "Nepal",
				AddressZip:     "44600",
			},
		},
		CartItems: []paymentapi.CartItem{
			{Name: "N95 Mask", Quantity: 2, Price: 121},
			{Name: "Gloves", Quantity: 1, Price: 10},
		},
		CurrentUser: paymentapi.User{ID: 7, Name: "Sita Rai", Email: "sita@example.com", IsActive: true},
		// 120.6*2 + 9.5 = 250.7
		Subtotal: 251,
	}, gw.calls[0].req)
}

func TestSubmitSignedOutAndPrefill(t *testing.T) {
	cart := &fakeCart{cart: cartWith(1, maskLine(1))}
	gw := &fakeGateway{}

	t.Run("signed out sends zero identity", func(t *testing.T) {
		svc := newTestService(t, cart, fakeUsers{}, gw)
		_, err := svc.Submit(context.Background(), "s1", form())
		require.NoError(t, err)
		last := gw.calls[len(gw.calls)-1].req.CurrentUser
		assert.Equal(t, int64(0), last.ID)
		assert.False(t, last.IsStaff)
		assert.False(t, last.IsActive)
	})

	t.Run("blank name and email come from the user", func(t *testing.T) {
		users := fakeUsers{user: User{ID: 2, Name: "Hari", Email: "hari@example.com"}, ok: true}
		svc := newTestService(t, cart, users, gw)
		f := form()
		f.CustomerName, f.CustomerEmail = "", ""

		_, err := svc.Submit(context.Background(), "s1", f)
		require.NoError(t, err)
		last := gw.calls[len(gw.calls)-1].req
		assert.Equal(t, "Hari", last.CurrentUser.Name)
		assert.Equal(t, "hari@example.com", last.Token.Email)
	})
}

func TestSubmitGuards(t *testing.T) {
	tests := []struct {
		name    string
		cart    Cart
		form    domain.Form
		session string
		want    error
	}{
		{"empty cart", Cart{}, form(), "s1", ErrEmptyCart},
		{"over stock", Cart{Lines: []CartLine{maskLine(2)}, CanCheckout: false}, form(), "s1", ErrCannotCheckout},
		{"invalid line", cartWith(1, CartLine{ProductID: "x", Name: "", UnitPrice: decimal.NewFromInt(1), EffectiveQuantity: 1}), form(), "s1", ErrInvalidCart},
		{"free line", cartWith(1, CartLine{ProductID: "x", Name: "X", UnitPrice: decimal.Zero, EffectiveQuantity: 1}), form(), "s1", ErrInvalidCart},
		{"no session", cartWith(1, maskLine(1)), form(), " ", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			svc := newTestService(t, &fakeCart{cart: tt.cart}, fakeUsers{}, gw)

			_, err := svc.Submit(context.Background(), tt.session, tt.form)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, gw.calls)
			assert.Equal(t, domain.StateIdle, svc.State(tt.session))
		})
	}

	t.Run("invalid form", func(t *testing.T) {
		gw := &fakeGateway{}
		svc := newTestService(t, &fakeCart{cart: cartWith(1, maskLine(1))}, fakeUsers{}, gw)
		f := form()
		f.CustomerPhone = "123"

		_, err := svc.Submit(context.Background(), "s1", f)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, domain.MsgPhoneRequired, ve.Fields["customerPhone"])
		assert.Empty(t, gw.calls)
	})
}

func TestSubmitRejectedKeepsCart(t *testing.T) {
	cart := &fakeCart{cart: cartWith(1, maskLine(1))}
	gw := &fakeGateway{results: []error{&domain.GatewayRejectedError{Message: "insufficient funds"}}}
	svc := newTestService(t, cart, fakeUsers{}, gw)

	res, err := svc.Submit(context.Background(), "s1", form())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, "insufficient funds", res.Message)
	assert.Nil(t, res.Redirect)
	assert.Equal(t, domain.StateFailed, svc.State("s1"))
	assert.Zero(t, cart.cleared)
	assert.Len(t, cart.cart.Lines, 1)
}

func TestFailureMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrServerResponse, "Server error: Invalid response from backend."},
		{domain.ErrTransport, "Payment failed"},
		{context.DeadlineExceeded, "Payment failed"},
		{&domain.GatewayRejectedError{Message: "Payment initiation failed"}, "Payment initiation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			svc := newTestService(t, &fakeCart{cart: cartWith(1, maskLine(1))}, fakeUsers{}, &fakeGateway{results: []error{tt.err}})
			res, err := svc.Submit(context.Background(), "s1", form())
			require.NoError(t, err)
			assert.Equal(t, domain.StateFailed, res.State)
			assert.Equal(t, tt.want, res.Message)
			assert.ErrorIs(t, res.Err, tt.err)
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	cart := &fakeCart{cart: cartWith(1, maskLine(1))}
	gw := &fakeGateway{results: []error{domain.ErrTransport, domain.ErrTransport, nil, nil}}
	svc := newTestService(t, cart, fakeUsers{}, gw)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "s1", form())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "s1", form())
	require.NoError(t, err)
	assert.Equal(t, gw.calls[0].key, gw.calls[1].key, "unchanged retry reuses the key")

	cart.cart = cartWith(2, maskLine(2))
	res, err := svc.Submit(ctx, "s1", form())
	require.NoError(t, err)
	assert.Equal(t, domain.StateRedirecting, res.State)
	assert.NotEqual(t, gw.calls[1].key, gw.calls[2].key, "changed cart rotates the key")

	_, err = svc.Submit(ctx, "s1", form())
	require.NoError(t, err)
	assert.NotEqual(t, gw.calls[2].key, gw.calls[3].key, "redirect rotates the key")
}

func TestSubmitWhileSubmitting(t *testing.T) {
	gw := &fakeGateway{entered: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(t, &fakeCart{cart: cartWith(1, maskLine(1))}, fakeUsers{}, gw)
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() {
		res, _ := svc.Submit(ctx, "s1", form())
		done <- res
	}()

	<-gw.entered
	assert.Equal(t, domain.StateSubmitting, svc.State("s1"))
	_, err := svc.Submit(ctx, "s1", form())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(gw.release)
	assert.Equal(t, domain.StateRedirecting, (<-done).State)
}

func TestHandleReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("completed clears the cart", func(t *testing.T) {
		cart := &fakeCart{cart: cartWith(1, maskLine(1))}
		svc := newTestService(t, cart, fakeUsers{}, &fakeGateway{})

		q := url.Values{"status": {"Completed"}, "pidx": {"p1"}, "transaction_id": {"tx"}, "amount": {"12100"}}
		res, err := svc.HandleReturn(ctx, "s1", q)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCompleted, res.Outcome)
		assert.Equal(t, "Payment successful! Thank you for your order.", res.Message)
		assert.True(t, res.CartCleared)
		assert.Equal(t, "tx", res.TransactionID)
		assert.Equal(t, 1, cart.cleared)
		assert.Empty(t, cart.cart.Lines)

		_, err = svc.HandleReturn(ctx, "s1", q)
		require.NoError(t, err)
		assert.Equal(t, 2, cart.cleared)
	})

	for _, status := range []string{"Pending", "Failed", "Bogus", ""} {
		t.Run(status+" keeps the cart", func(t *testing.T) {
			cart := &fakeCart{cart: cartWith(1, maskLine(1))}
			svc := newTestService(t, cart, fakeUsers{}, &fakeGateway{})

			res, err := svc.HandleReturn(ctx, "s1", url.Values{"status": {status}})
			require.NoError(t, err)
			assert.False(t, res.CartCleared)
			assert.Zero(t, cart.cleared)
			assert.Len(t, cart.cart.Lines, 1)
		})
	}

	t.Run("bogus is unknown", func(t *testing.T) {
		svc := newTestService(t, &fakeCart{}, fakeUsers{}, &fakeGateway{})
		res, err := svc.HandleReturn(ctx, "s1", url.Values{"status": {"Bogus"}})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeUnknown, res.Outcome)
		assert.Equal(t, domain.MsgUnknown, res.Message)
	})
}
