package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/okhati-storefront/internal/checkout/app"
	"github.com/dwikikusuma/okhati-storefront/internal/checkout/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpx"
)

type Handler struct {
	svc *app.Service
	log *slog.Logger
}

func NewHandler(svc *app.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/checkout", h.state)
	r.Post("/checkout", h.submit)
	r.Get("/payment-status", h.paymentStatus)
}

type checkoutResponse struct {
	State       domain.State      `json:"state"`
	Redirect    *domain.Redirect  `json:"redirect,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Error       string            `json:"error,omitempty"`
	Pidx        string            `json:"pidx,omitempty"`
	OrderID     string            `json:"orderId,omitempty"`
}

type paymentStatusResponse struct {
	Outcome       domain.Outcome `json:"outcome"`
	Message       string         `json:"message"`
	Pidx          string         `json:"pidx,omitempty"`
	TransactionID string         `json:"transactionId,omitempty"`
	Amount        string         `json:"amount,omitempty"`
	CartCleared   bool           `json:"cartCleared"`
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, checkoutResponse{State: h.svc.State(httpx.SessionID(r.Context()))})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var form domain.Form
	if err := httpx.Decode(r, &form); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	sessionID := httpx.SessionID(r.Context())
	res, err := h.svc.Submit(r.Context(), sessionID, form)
	if err != nil {
		h.guardFailed(w, r, sessionID, err)
		return
	}

	body := checkoutResponse{
		State:    res.State,
		Redirect: res.Redirect,
		Pidx:     res.Pidx,
		OrderID:  res.OrderID,
	}
	if res.State == domain.StateFailed {
		body.Error = res.Message
		httpx.JSON(w, http.StatusBadGateway, body)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}

// guardFailed answers a submission refused before the backend was called.
func (h *Handler) guardFailed(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	body := checkoutResponse{State: h.svc.State(sessionID)}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		body.FieldErrors = ve.Fields
		httpx.JSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, app.ErrInvalidCart):
		body.Error = domain.MsgInvalidCart
		httpx.JSON(w, http.StatusConflict, body)
	case errors.Is(err, app.ErrEmptyCart), errors.Is(err, app.ErrCannotCheckout), errors.Is(err, app.ErrSubmissionInProgress):
		body.Error = err.Error()
		httpx.JSON(w, http.StatusConflict, body)
	default:
		httpx.Error(w, r, h.log, mapErr(err))
	}
}

func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.HandleReturn(r.Context(), httpx.SessionID(r.Context()), r.URL.Query())
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, paymentStatusResponse{
		Outcome:       res.Outcome,
		Message:       res.Message,
		Pidx:          res.Pidx,
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		CartCleared:   res.CartCleared,
	})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrStockUnavailable), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Unavailable, "stock unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	return status.Errorf(codes.Internal, "checkout: %v", err)
}
