package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dwikikusuma/okhati-storefront/internal/session/domain"
	"github.com/dwikikusuma/okhati-storefront/internal/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSignedOut    = errors.New("no signed-in user")
)

// Service keeps the current user of each session.
type Service struct {
	kv storage.Store
}

func NewService(kv storage.Store) *Service {
	return &Service{kv: kv}
}

func (s *Service) SignIn(ctx context.Context, sessionID string, u domain.User) error {
	key, err := userKey(sessionID)
	if err != nil {
		return err
	}
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	value, err := json.Marshal(u)
	if err != nil {
		return err
	}

	// Last writer wins; read the version and overwrite.
	for {
		var expected uint64
		rec, err := s.kv.Get(ctx, key)
		switch {
		case err == nil:
			expected = rec.Version
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		_, err = s.kv.Put(ctx, key, value, expected)
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// CurrentUser returns ErrSignedOut when the session has no user.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (domain.User, error) {
	key, err := userKey(sessionID)
	if err != nil {
		return domain.User{}, err
	}

	rec, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.User{}, ErrSignedOut
	}
	if err != nil {
		return domain.User{}, err
	}

	var u domain.User
	if err := json.Unmarshal(rec.Value, &u); err != nil {
		return domain.User{}, ErrSignedOut
	}
	return u, nil
}

func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	key, err := userKey(sessionID)
	if err != nil {
		return err
	}
	return s.kv.Delete(ctx, key)
}

func userKey(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	return storage.Key(sessionID, storage.KeyCurrentUser), nil
}
