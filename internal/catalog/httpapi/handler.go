package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/okhati-storefront/internal/catalog/app"
	"github.com/dwikikusuma/okhati-storefront/internal/catalog/domain"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpx"
)

// Handler serves product browsing. Stock here may be a few seconds old; the
// cart re-reads it live.
type Handler struct {
	svc *app.Service
	log *slog.Logger
}

func NewHandler(svc *app.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{productID}", h.get)
	r.Get("/stock", h.stock)
}

type productResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Price        json.Number `json:"price"`
	Image        string      `json:"image,omitempty"`
	Category     string      `json:"category,omitempty"`
	CountInStock int         `json:"countInStock"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

// stock answers GET /stock?ids=a,b with {"a":3,"b":0}.
func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		httpx.Error(w, r, h.log, status.Error(codes.InvalidArgument, "ids is required"))
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), ids)
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func toResponse(p domain.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Price:        json.Number(p.Price.String()),
		Image:        p.Image,
		Category:     p.Category,
		CountInStock: p.CountInStock,
	}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, "product id is required")
	case errors.Is(err, app.ErrNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	return status.Error(codes.Unavailable, "catalog unavailable")
}
