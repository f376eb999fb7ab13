package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/okhati-storefront/internal/catalog/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	src   ProductSource
	stock *cache.Cache

	maxConcurrent int
}

// NewService wraps src. Stock counts are cached for stockTTL; a zero TTL
// disables the cache.
func NewService(src ProductSource, stockTTL time.Duration, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	s := &Service{
		src:           src,
		maxConcurrent: maxConcurrent,
	}
	if stockTTL > 0 {
		s.stock = cache.New(stockTTL, 2*stockTTL)
	}
	return s
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, ErrInvalidInput
	}
	p, err := s.src.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	s.remember(p.ID, p.CountInStock)
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.src.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		s.remember(p.ID, p.CountInStock)
	}
	return products, nil
}

// Snapshot returns stock for ids, serving recently seen counts from the
// cache. It is meant for browsing. Products missing from the catalog report
// zero stock rather than an error.
func (s *Service) Snapshot(ctx context.Context, ids []string) (domain.StockSnapshot, error) {
	snap := make(domain.StockSnapshot, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.cached(id); ok {
			snap[id] = n
			continue
		}
		missing = append(missing, id)
	}
	if err := s.fetch(ctx, missing, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// LiveSnapshot reads every count from the source, bypassing the cache. Cart
// reconciliation and checkout use it so no unit beyond current stock is
// ever charged.
func (s *Service) LiveSnapshot(ctx context.Context, ids []string) (domain.StockSnapshot, error) {
	snap := make(domain.StockSnapshot, len(ids))
	if err := s.fetch(ctx, ids, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) fetch(ctx context.Context, ids []string, into domain.StockSnapshot) error {
	if len(ids) == 0 {
		return nil
	}

	counts := make([]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx, id := range ids {
		idx, id := idx, id
		g.Go(func() error {
			p, err := s.src.Get(gctx, id)
			if errors.Is(err, ErrNotFound) {
				counts[idx] = 0
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get stock for %s: %w", id, err)
			}
			counts[idx] = p.CountInStock
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for idx, id := range ids {
		into[id] = counts[idx]
		s.remember(id, counts[idx])
	}
	return nil
}

func (s *Service) cached(id string) (int, bool) {
	if s.stock == nil {
		return 0, false
	}
	v, ok := s.stock.Get(id)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func (s *Service) remember(id string, count int) {
	if s.stock == nil {
		return
	}
	s.stock.SetDefault(id, count)
}
