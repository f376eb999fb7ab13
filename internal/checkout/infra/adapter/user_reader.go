package adapter

import (
	"context"
	"errors"

	checkoutapp "github.com/dwikikusuma/okhati-storefront/internal/checkout/app"
	sessionapp "github.com/dwikikusuma/okhati-storefront/internal/session/app"
)

type SessionUserReader struct {
	svc *sessionapp.Service
}

func NewSessionUserReader(svc *sessionapp.Service) *SessionUserReader {
	return &SessionUserReader{svc: svc}
}

var _ checkoutapp.UserReader = (*SessionUserReader)(nil)

func (r *SessionUserReader) CurrentUser(ctx context.Context, sessionID string) (checkoutapp.User, bool, error) {
	u, err := r.svc.CurrentUser(ctx, sessionID)
	if errors.Is(err, sessionapp.ErrSignedOut) {
		return checkoutapp.User{}, false, nil
	}
	if err != nil {
		return checkoutapp.User{}, false, err
	}

	return checkoutapp.User{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
		IsActive: u.IsActive,
	}, true, nil
}
