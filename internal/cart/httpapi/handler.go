package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/okhati-storefront/internal/cart/app"
	"github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
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
	r.Get("/cart", h.get)
	r.Delete("/cart", h.clear)
	r.Post("/cart/items", h.addItem)
	r.Put("/cart/items/{productID}", h.setQuantity)
	r.Delete("/cart/items/{productID}", h.removeItem)
	r.Post("/cart/repair", h.repair)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type lineResponse struct {
	ProductID         string      `json:"productId"`
	Name              string      `json:"name"`
	UnitPrice         json.Number `json:"unitPrice"`
	Quantity          int         `json:"quantity"`
	EffectiveQuantity int         `json:"effectiveQuantity"`
	Available         int         `json:"available"`
	OverStock         bool        `json:"overStock"`
	Warning           string      `json:"warning,omitempty"`
	LineTotal         json.Number `json:"lineTotal"`
}

type cartResponse struct {
	Version     uint64         `json:"version"`
	Lines       []lineResponse `json:"lines"`
	Subtotal    json.Number    `json:"subtotal"`
	CanCheckout bool           `json:"canCheckout"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.svc.AddItem(r.Context(), httpx.SessionID(r.Context()), req.ProductID, req.Quantity); err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	h.respondView(w, r)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	err := h.svc.SetQuantity(r.Context(), httpx.SessionID(r.Context()), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	h.respondView(w, r)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveItem(r.Context(), httpx.SessionID(r.Context()), chi.URLParam(r, "productID")); err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	h.respondView(w, r)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context(), httpx.SessionID(r.Context())); err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	h.respondView(w, r)
}

func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Repair(r.Context(), httpx.SessionID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.View(r.Context(), httpx.SessionID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func toResponse(v app.View) cartResponse {
	lines := make([]lineResponse, 0, len(v.Lines))
	for _, ls := range v.Lines {
		lines = append(lines, toLine(ls))
	}
	return cartResponse{
		Version:     v.Version,
		Lines:       lines,
		Subtotal:    json.Number(v.Subtotal.String()),
		CanCheckout: v.CanCheckout,
	}
}

func toLine(ls domain.LineStatus) lineResponse {
	return lineResponse{
		ProductID:         ls.Line.ProductID,
		Name:              ls.Line.Name,
		UnitPrice:         json.Number(ls.Line.UnitPrice.String()),
		Quantity:          ls.Line.Quantity,
		EffectiveQuantity: ls.EffectiveQuantity,
		Available:         ls.Available,
		OverStock:         ls.OverStock,
		Warning:           ls.Warning,
		LineTotal:         json.Number(ls.LineTotal.String()),
	}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, app.ErrConflict):
		return status.Error(codes.Aborted, "cart was modified concurrently, retry")
	case errors.Is(err, app.ErrCatalogUnavailable), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Unavailable, "catalog unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	return status.Errorf(codes.Internal, "cart: %v", err)
}
