package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/okhati-storefront/internal/order/app"
	"github.com/dwikikusuma/okhati-storefront/internal/order/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/sqlite"
)

func newRepo(t *testing.T) *OrderRepo {
	t.Helper()
	db, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "orders.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewOrderRepo(context.Background(), db)
	require.NoError(t, err)
	return repo
}

func TestOrderRepo(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	created, err := repo.CreateOrderTx(ctx, domain.Order{
		UserID:         3,
		CustomerName:   "Hari",
		Email:          "hari@example.com",
		Status:         domain.StatusPending,
		Currency:       domain.CurrencyNPR,
		TransactionID:  "pidx-9",
		SubTotalAmount: 240,
		TotalAmount:    240,
		Shipping:       domain.ShippingAddress{Address: "Patan", City: "Kathmandu", Country: "Nepal", PostalCode: "44600"},
		OrderItems: []domain.OrderItem{
			{Name: "Mask", UnitAmount: 120, Quantity: 2, LineTotalAmount: 240},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, created.ID, created.OrderItems[0].OrderID)

	got, err := repo.GetByTransaction(ctx, "pidx-9")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Patan", got.Shipping.Address)
	require.Len(t, got.OrderItems, 1)
	assert.Equal(t, int32(2), got.OrderItems[0].Quantity)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, repo.UpdateStatusByTransaction(ctx, "pidx-9", domain.StatusPaid))
	got, err = repo.GetByTransaction(ctx, "pidx-9")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)

	assert.ErrorIs(t, repo.UpdateStatusByTransaction(ctx, "missing", domain.StatusPaid), app.ErrNotFound)
	_, err = repo.GetByTransaction(ctx, "missing")
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestDuplicateTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	order := domain.Order{
		Status:        domain.StatusPending,
		Currency:      domain.CurrencyNPR,
		TransactionID: "dup",
		TotalAmount:   10,
		OrderItems:    []domain.OrderItem{{Name: "A", UnitAmount: 10, Quantity: 1, LineTotalAmount: 10}},
	}
	_, err := repo.CreateOrderTx(ctx, order)
	require.NoError(t, err)

	_, err = repo.CreateOrderTx(ctx, order)
	require.Error(t, err)

	var n int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&n))
	assert.Equal(t, 1, n)
}
