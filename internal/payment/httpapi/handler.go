package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/okhati-storefront/internal/payment/app"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpx"
	"github.com/dwikikusuma/okhati-storefront/pkg/paymentapi"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc *app.Service
	log *slog.Logger
}

func NewHandler(svc *app.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post(paymentapi.InitiatePath, h.initiate)
	r.Get(paymentapi.PaymentsPath+"/{pidx}", h.lookup)
}

// initiate answers every failure with 400 and {success:false, error}, which
// is what storefront clients read.
func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	var req paymentapi.InitiationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Initiate(r.Context(), r.Header.Get(paymentapi.IdempotencyKeyHeader), req)
	if err != nil {
		var rejected *app.RejectedError
		switch {
		case errors.Is(err, app.ErrKeyReused):
			h.fail(w, http.StatusConflict, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			h.fail(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &rejected):
			h.fail(w, http.StatusBadRequest, rejected.Message)
		default:
			h.log.ErrorContext(r.Context(), "payment initiation failed", slog.Any("err", err))
			h.fail(w, http.StatusBadRequest, "Payment initiation failed")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "pidx"))
	if err != nil {
		h.log.WarnContext(r.Context(), "payment lookup failed", slog.Any("err", err))
		httpx.Error(w, r, nil, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, code int, msg string) {
	httpx.JSON(w, code, paymentapi.InitiationResponse{Success: false, Error: msg})
}

func mapErr(err error) error {
	var rejected *app.RejectedError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &rejected) && rejected.StatusCode == http.StatusNotFound:
		return status.Error(codes.NotFound, "payment not found")
	case errors.As(err, &rejected) && rejected.StatusCode < http.StatusInternalServerError:
		return status.Error(codes.FailedPrecondition, rejected.Message)
	default:
		return status.Error(codes.Unavailable, "payment provider unavailable")
	}
}
