package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderapp "github.com/dwikikusuma/okhati-storefront/internal/order/app"
	"github.com/dwikikusuma/okhati-storefront/internal/order/infra/logpub"
	ordersqlite "github.com/dwikikusuma/okhati-storefront/internal/order/infra/sqlite"
	"github.com/dwikikusuma/okhati-storefront/internal/payment/app"
	"github.com/dwikikusuma/okhati-storefront/internal/payment/infra/khalti"
	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
	"github.com/dwikikusuma/okhati-storefront/pkg/sqlite"
)

type provider struct {
	initiateStatus int
	initiateBody   string
	lookupBody     string
	initiates      int
}

func newRouter(t *testing.T, p *provider) http.Handler {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/epayment/initiate/":
			p.initiates++
			if p.initiateStatus != 0 {
				w.WriteHeader(p.initiateStatus)
			}
			_, _ = w.Write([]byte(p.initiateBody))
		case "/epayment/lookup/":
			_, _ = w.Write([]byte(p.lookupBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	db, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "orders.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := ordersqlite.NewOrderRepo(context.Background(), db)
	require.NoError(t, err)
	orders := orderapp.NewService(repo, logpub.New(slog.Default()), nil)

	svc, err := app.NewService(khalti.NewClient(srv.URL, "secret", srv.Client()), orders, "http://shop.example", 0, nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc, nil).Routes(r)
	return r
}

const initiateBody = `{
	"token": {"id": "khalti", "email": "sita@example.com", "card": {"address_line1": "Baneshwor", "address_city": "Kathmandu", "address_country": "Nepal", "address_zip": "44600"}},
	"cartItems": [{"name": "Face Mask", "quantity": 2, "price": 121}],
	"currentUser": {"id": 7, "name": "Sita", "email": "sita@example.com", "is_staff": false, "is_active": true},
	"subtotal": 241
}`

func post(t *testing.T, h http.Handler, key, body string) (*httptest.ResponseRecorder, paymentapi.InitiationResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, paymentapi.InitiatePath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(paymentapi.IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp paymentapi.InitiationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestInitiate(t *testing.T) {
	p := &provider{initiateBody: `{"pidx":"px1","payment_url":"https://pay.khalti.com/?pidx=px1"}`}
	h := newRouter(t, p)

	rec, resp := post(t, h, "k-1", initiateBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "https://pay.khalti.com/?pidx=px1", resp.PaymentURL)
	assert.Equal(t, "px1", resp.Pidx)
	assert.NotEmpty(t, resp.OrderID)

	rec, again := post(t, h, "k-1", initiateBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp, again)
	assert.Equal(t, 1, p.initiates)
}

func TestInitiate_Failures(t *testing.T) {
	t.Run("provider rejects", func(t *testing.T) {
		h := newRouter(t, &provider{
			initiateStatus: http.StatusBadRequest,
			initiateBody:   `{"amount":["Amount should be greater than Rs. 10, that is 1000 paisa."],"error_key":"validation_error"}`,
		})
		rec, resp := post(t, h, "", initiateBody)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "amount: Amount should be greater than Rs. 10, that is 1000 paisa.", resp.Error)
	})

	t.Run("bad body", func(t *testing.T) {
		h := newRouter(t, &provider{})
		rec, resp := post(t, h, "", `{"token":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "invalid request body", resp.Error)
	})

	t.Run("invalid request", func(t *testing.T) {
		h := newRouter(t, &provider{})
		rec, resp := post(t, h, "", strings.Replace(initiateBody, `"subtotal": 241`, `"subtotal": 0`, 1))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Error, "subtotal must be positive")
	})

	t.Run("garbage from provider", func(t *testing.T) {
		h := newRouter(t, &provider{initiateBody: `<html>oops</html>`})
		rec, resp := post(t, h, "", initiateBody)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Payment initiation failed", resp.Error)
	})

	t.Run("key reused", func(t *testing.T) {
		h := newRouter(t, &provider{initiateBody: `{"pidx":"px1","payment_url":"https://pay.khalti.com/?pidx=px1"}`})
		rec, _ := post(t, h, "k-1", initiateBody)
		require.Equal(t, http.StatusOK, rec.Code)

		other := strings.Replace(initiateBody, `"quantity": 2`, `"quantity": 1`, 1)
		other = strings.Replace(other, `"subtotal": 241`, `"subtotal": 121`, 1)
		rec, resp := post(t, h, "k-1", other)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, resp.Success)
	})
}

func TestLookup(t *testing.T) {
	h := newRouter(t, &provider{
		initiateBody: `{"pidx":"px1","payment_url":"https://pay.khalti.com/?pidx=px1"}`,
		lookupBody:   `{"pidx":"px1","total_amount":24100,"status":"Completed","transaction_id":"T1","fee":300,"refunded":false}`,
	})
	rec, _ := post(t, h, "", initiateBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, paymentapi.PaymentsPath+"/px1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp paymentapi.LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Completed", resp.Status)
	assert.Equal(t, "T1", resp.TransactionID)
	assert.Equal(t, int64(300), resp.Fee)
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "PAID", resp.OrderStatus)
}

func TestLookup_ProviderGarbage(t *testing.T) {
	h := newRouter(t, &provider{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, paymentapi.PaymentsPath+"/nope", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
