package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/okhati-storefront/internal/session/app"
	"github.com/dwikikusuma/okhati-storefront/internal/session/domain"
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
	r.Get("/session/user", h.get)
	r.Put("/session/user", h.put)
	r.Delete("/session/user", h.delete)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.CurrentUser(r.Context(), httpx.SessionID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := httpx.Decode(r, &u); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.svc.SignIn(r.Context(), httpx.SessionID(r.Context()), u); err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	h.get(w, r)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), httpx.SessionID(r.Context())); err != nil {
		httpx.Error(w, r, h.log, mapErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrSignedOut):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Errorf(codes.Internal, "session: %v", err)
}
