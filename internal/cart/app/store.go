package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
)

var (
	ErrConflict        = errors.New("cart was modified concurrently")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrProductNotFound = errors.New("product not found")
	ErrEmptyCart       = errors.New("cart is empty")

	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// maxAttempts bounds reload-and-reapply rounds when another writer (another
// tab of the same session) saved in between.
const maxAttempts = 5

// Change is delivered to subscribers after a mutation has been persisted.
type Change struct {
	SessionID string
	Lines     []domain.CartLine
	Version   uint64
}

// Store is the cart of one session. Mutations are serialized and persisted
// before they return.
type Store struct {
	sessionID string
	repo      LineStore

	mu      sync.Mutex
	lines   []domain.CartLine
	version uint64

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

func OpenStore(ctx context.Context, sessionID string, repo LineStore) (*Store, error) {
	lines, version, err := repo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", sessionID, err)
	}
	return &Store{
		sessionID: sessionID,
		repo:      repo,
		lines:     lines,
		version:   version,
		subs:      make(map[int]func(Change)),
	}, nil
}

func (s *Store) SessionID() string { return s.sessionID }

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns the lines together with the version they belong to.
func (s *Store) Snapshot() ([]domain.CartLine, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines), s.version
}

func (s *Store) AddItem(ctx context.Context, p domain.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return domain.AddItem(lines, p, quantity)
	})
}

func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return domain.SetQuantity(lines, productID, quantity)
	})
}

func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return domain.RemoveItem(lines, productID)
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]domain.CartLine) []domain.CartLine {
		return []domain.CartLine{}
	})
}

// Subscribe registers fn for every persisted change. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// mutate applies fn and saves with compare-and-set on the version. When the
// stored version moved, the lines are reloaded and fn is applied again.
func (s *Store) mutate(ctx context.Context, fn func([]domain.CartLine) []domain.CartLine) error {
	s.mu.Lock()

	var change Change
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		next := fn(slices.Clone(s.lines))

		var version uint64
		version, err = s.repo.Save(ctx, s.sessionID, next, s.version)
		if err == nil {
			s.lines, s.version = next, version
			change = Change{SessionID: s.sessionID, Lines: slices.Clone(next), Version: version}
			break
		}
		if !errors.Is(err, ErrConflict) {
			break
		}

		lines, version, loadErr := s.repo.Load(ctx, s.sessionID)
		if loadErr != nil {
			err = loadErr
			break
		}
		s.lines, s.version = lines, version
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(change)
	return nil
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
