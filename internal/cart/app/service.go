package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// View is a cart reconciled against live stock at one point in time.
type View struct {
	domain.Reconciliation
	Version uint64
}

type Service struct {
	repo     LineStore
	products ProductReader
	stock    StockReader
	stores   *lru.Cache[string, *Store]
	onChange func(Change)
}

type Option func(*Service)

// WithChangeHook subscribes fn to every store the service opens.
func WithChangeHook(fn func(Change)) Option {
	return func(s *Service) { s.onChange = fn }
}

func NewService(repo LineStore, products ProductReader, stock StockReader, cacheSize int, opts ...Option) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	stores, err := lru.New[string, *Store](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cart store cache: %w", err)
	}
	s := &Service{
		repo:     repo,
		products: products,
		stock:    stock,
		stores:   stores,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the cart of sessionID, loading it from persistence when it
// is not cached.
func (s *Service) Store(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if st, ok := s.stores.Get(sessionID); ok {
		return st, nil
	}

	st, err := OpenStore(ctx, sessionID, s.repo)
	if err != nil {
		return nil, err
	}
	if prev, ok, _ := s.stores.PeekOrAdd(sessionID, st); ok {
		return prev, nil
	}
	if s.onChange != nil {
		st.Subscribe(s.onChange)
	}
	return st, nil
}

// Lines returns the session's lines and the version they were read at.
func (s *Service) Lines(ctx context.Context, sessionID string) ([]domain.CartLine, uint64, error) {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	lines, version := st.Snapshot()
	return lines, version, nil
}

// AddItem looks the product up in the catalog and merges quantity units of
// it into the cart.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return err
	}
	p, err := s.products.Product(ctx, productID)
	if err != nil {
		return err
	}
	return st.AddItem(ctx, p, quantity)
}

func (s *Service) SetQuantity(ctx context.Context, sessionID, productID string, quantity int) error {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return err
	}
	return st.SetQuantity(ctx, productID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) error {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return err
	}
	return st.RemoveItem(ctx, productID)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return err
	}
	return st.Clear(ctx)
}

// View reconciles the session's cart against live stock. A snapshot that
// arrives after ctx is done is discarded.
func (s *Service) View(ctx context.Context, sessionID string) (View, error) {
	lines, version, err := s.Lines(ctx, sessionID)
	if err != nil {
		return View{}, err
	}

	snap, err := s.snapshot(ctx, lines)
	if err != nil {
		return View{}, err
	}
	return View{Reconciliation: domain.Reconcile(lines, snap), Version: version}, nil
}

// Repair clamps over-stock lines to live stock and drops lines whose product
// is gone, then returns the reconciled result.
func (s *Service) Repair(ctx context.Context, sessionID string) (View, error) {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return View{}, err
	}

	snap, err := s.snapshot(ctx, st.Lines())
	if err != nil {
		return View{}, err
	}

	err = st.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return repairKnown(lines, snap)
	})
	if err != nil {
		return View{}, err
	}

	lines, version := st.Snapshot()
	return View{Reconciliation: domain.Reconcile(lines, snap), Version: version}, nil
}

func (s *Service) snapshot(ctx context.Context, lines []domain.CartLine) (domain.StockSnapshot, error) {
	if len(lines) == 0 {
		return domain.StockSnapshot{}, nil
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	snap, err := s.stock.Stock(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: stock snapshot: %w", ErrCatalogUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

// repairKnown repairs only lines covered by snap. Lines added by another
// writer after the snapshot was taken are left alone.
func repairKnown(lines []domain.CartLine, snap domain.StockSnapshot) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if _, ok := snap[l.ProductID]; !ok {
			out = append(out, l)
			continue
		}
		out = append(out, domain.Repair([]domain.CartLine{l}, snap)...)
	}
	return out
}
