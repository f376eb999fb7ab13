package logpub

import (
	"context"
	"log/slog"

	"github.com/dwikikusuma/okhati-storefront/internal/order/app"
	"github.com/dwikikusuma/okhati-storefront/internal/order/domain"
)

// Publisher logs order events. It stands in when no broker is configured.
type Publisher struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Publisher {
	return &Publisher{log: log}
}

var _ app.Publisher = (*Publisher)(nil)

func (p *Publisher) PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error {
	p.log.InfoContext(ctx, "order placed",
		slog.String("order_id", evt.OrderID),
		slog.String("transaction_id", evt.TransactionID),
		slog.Int64("total_amount", evt.TotalAmount),
		slog.Int("items", len(evt.Items)),
	)
	return nil
}
