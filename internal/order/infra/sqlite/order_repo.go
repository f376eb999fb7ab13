package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/okhati-storefront/internal/order/app"
	"github.com/dwikikusuma/okhati-storefront/internal/order/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              TEXT    NOT NULL PRIMARY KEY,
	user_id         INTEGER NOT NULL,
	name            TEXT    NOT NULL,
	email           TEXT    NOT NULL,
	status          TEXT    NOT NULL,
	currency        TEXT    NOT NULL,
	transaction_id  TEXT    NOT NULL UNIQUE,
	subtotal_amount INTEGER NOT NULL,
	total_amount    INTEGER NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items (
	id                TEXT    NOT NULL PRIMARY KEY,
	order_id          TEXT    NOT NULL REFERENCES orders(id),
	name              TEXT    NOT NULL,
	unit_amount       INTEGER NOT NULL,
	quantity          INTEGER NOT NULL,
	line_total_amount INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS shipping_addresses (
	order_id    TEXT NOT NULL PRIMARY KEY REFERENCES orders(id),
	address     TEXT NOT NULL,
	city        TEXT NOT NULL,
	country     TEXT NOT NULL,
	postal_code TEXT NOT NULL
);
`

type OrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepo(ctx context.Context, db *sql.DB) (*OrderRepo, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create order tables: %w", err)
	}
	return &OrderRepo{db: db, now: time.Now}, nil
}

var _ app.OrderRepo = (*OrderRepo)(nil)

func (r *OrderRepo) execTX(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (r *OrderRepo) CreateOrderTx(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := r.now().UTC().Truncate(time.Second)
	order.ID = uuid.NewString()
	order.OrderItems = slices.Clone(order.OrderItems)
	order.CreatedAt = now
	order.UpdatedAt = now

	err := r.execTX(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, name, email, status, currency, transaction_id,
				subtotal_amount, total_amount, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, order.UserID, order.CustomerName, order.Email, order.Status, order.Currency,
			order.TransactionID, order.SubTotalAmount, order.TotalAmount, now.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO shipping_addresses (order_id, address, city, country, postal_code)
			 VALUES (?, ?, ?, ?, ?)`,
			order.ID, order.Shipping.Address, order.Shipping.City, order.Shipping.Country, order.Shipping.PostalCode)
		if err != nil {
			return fmt.Errorf("insert shipping address: %w", err)
		}

		for i := range order.OrderItems {
			it := &order.OrderItems[i]
			it.ID = uuid.NewString()
			it.OrderID = order.ID
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (id, order_id, name, unit_amount, quantity, line_total_amount)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				it.ID, it.OrderID, it.Name, it.UnitAmount, it.Quantity, it.LineTotalAmount)
			if err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepo) UpdateStatusByTransaction(ctx context.Context, transactionID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE transaction_id = ?`,
		status, r.now().UTC().Unix(), transactionID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrNotFound
	}
	return nil
}

// GetByTransaction loads an order with its items and shipping address.
func (r *OrderRepo) GetByTransaction(ctx context.Context, transactionID string) (domain.Order, error) {
	var (
		o                domain.Order
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT o.id, o.user_id, o.name, o.email, o.status, o.currency, o.transaction_id,
			o.subtotal_amount, o.total_amount, o.created_at, o.updated_at,
			s.address, s.city, s.country, s.postal_code
		 FROM orders o JOIN shipping_addresses s ON s.order_id = o.id
		 WHERE o.transaction_id = ?`, transactionID,
	).Scan(&o.ID, &o.UserID, &o.CustomerName, &o.Email, &o.Status, &o.Currency, &o.TransactionID,
		&o.SubTotalAmount, &o.TotalAmount, &created, &updated,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.Country, &o.Shipping.PostalCode)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = time.Unix(created, 0).UTC()
	o.UpdatedAt = time.Unix(updated, 0).UTC()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, name, unit_amount, quantity, line_total_amount
		 FROM order_items WHERE order_id = ? ORDER BY rowid`, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.UnitAmount, &it.Quantity, &it.LineTotalAmount); err != nil {
			return domain.Order{}, err
		}
		o.OrderItems = append(o.OrderItems, it)
	}
	return o, rows.Err()
}
