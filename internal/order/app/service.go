package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwikikusuma/okhati-storefront/internal/order/domain"
)

var (
	ErrInvalidInput  = errors.New("invalid order")
	ErrTotalMismatch = errors.New("order subtotal does not match its items")
	ErrNotFound      = errors.New("order not found")
)

type Service struct {
	repo OrderRepo
	pub  Publisher
	log  *slog.Logger
}

func NewService(repo OrderRepo, pub Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, pub: pub, log: log}
}

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OrderResponse, error) {
	if len(req.Items) == 0 {
		return domain.OrderResponse{}, fmt.Errorf("%w: items must not be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return domain.OrderResponse{}, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	if req.Subtotal <= 0 {
		return domain.OrderResponse{}, fmt.Errorf("%w: subtotal must be positive, got %d", ErrInvalidInput, req.Subtotal)
	}

	orderItem := make([]domain.OrderItem, 0, len(req.Items))
	var subTotalAmount int64

	for i, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return domain.OrderResponse{}, fmt.Errorf("%w: item %d: name is required", ErrInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return domain.OrderResponse{}, fmt.Errorf("%w: item %d: quantity must be positive, got %d", ErrInvalidInput, i, item.Quantity)
		}
		if item.UnitAmount < 0 {
			return domain.OrderResponse{}, fmt.Errorf("%w: item %d: unit amount cannot be negative, got %d", ErrInvalidInput, i, item.UnitAmount)
		}

		orderItem = append(orderItem, domain.OrderItem{
			Name:            item.Name,
			UnitAmount:      item.UnitAmount,
			Quantity:        item.Quantity,
			LineTotalAmount: item.UnitAmount * int64(item.Quantity),
		})

		subTotalAmount += item.UnitAmount * int64(item.Quantity)
	}

	if !domain.SubtotalMatches(req.Subtotal, req.Items) {
		return domain.OrderResponse{}, fmt.Errorf("%w: subtotal %d, items %d", ErrTotalMismatch, req.Subtotal, subTotalAmount)
	}

	order := domain.Order{
		UserID:         req.UserID,
		CustomerName:   req.CustomerName,
		Email:          req.Email,
		Status:         domain.StatusPending,
		Currency:       domain.CurrencyNPR,
		TransactionID:  req.TransactionID,
		SubTotalAmount: subTotalAmount,
		TotalAmount:    req.Subtotal,
		Shipping:       req.Shipping,
		OrderItems:     orderItem,
	}

	createdOrder, err := s.repo.CreateOrderTx(ctx, order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	if err := s.pub.PublishOrderPlaced(ctx, placedEvent(createdOrder)); err != nil {
		// The order is stored; a lost notification does not undo it.
		s.log.ErrorContext(ctx, "publish order.placed failed",
			slog.String("order_id", createdOrder.ID),
			slog.Any("err", err),
		)
	}

	return domain.OrderResponse{
		ID:            createdOrder.ID,
		Status:        createdOrder.Status,
		TransactionID: createdOrder.TransactionID,
		TotalAmount:   createdOrder.TotalAmount,
		CreatedAt:     createdOrder.CreatedAt,
	}, nil
}

// MarkPayment records the gateway's final word on a transaction.
func (s *Service) MarkPayment(ctx context.Context, transactionID, gatewayStatus string) error {
	var status string
	switch gatewayStatus {
	case "Completed":
		status = domain.StatusPaid
	case "Expired", "User canceled", "Failed":
		status = domain.StatusFailed
	default:
		return nil
	}
	return s.repo.UpdateStatusByTransaction(ctx, transactionID, status)
}

func (s *Service) GetByTransaction(ctx context.Context, transactionID string) (domain.Order, error) {
	if strings.TrimSpace(transactionID) == "" {
		return domain.Order{}, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	return s.repo.GetByTransaction(ctx, transactionID)
}

func placedEvent(o domain.Order) domain.OrderPlaced {
	rows := make([]domain.OrderPlacedRow, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		rows = append(rows, domain.OrderPlacedRow{Name: it.Name, Quantity: it.Quantity, UnitAmount: it.UnitAmount})
	}
	return domain.OrderPlaced{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Email:         o.Email,
		TransactionID: o.TransactionID,
		Currency:      o.Currency,
		TotalAmount:   o.TotalAmount,
		Items:         rows,
		PlacedAt:      o.CreatedAt,
	}
}
