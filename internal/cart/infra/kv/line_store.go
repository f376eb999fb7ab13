package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/okhati-storefront/internal/cart/app"
	"github.com/dwikikusuma/okhati-storefront/internal/cart/domain"
	"github.com/dwikikusuma/okhati-storefront/internal/storage"
)

// LineStore keeps a session's lines under its cartItems key.
type LineStore struct {
	kv storage.Store
}

func NewLineStore(kv storage.Store) *LineStore {
	return &LineStore{kv: kv}
}

var _ app.LineStore = (*LineStore)(nil)

type lineRecord struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Price        json.Number `json:"price"`
	CountInStock int         `json:"countInStock"`
	Quantity     int         `json:"quantity"`
}

// Load returns an empty cart for a missing record. A record that does not
// decode is also read as empty; the next save replaces it.
func (s *LineStore) Load(ctx context.Context, sessionID string) ([]domain.CartLine, uint64, error) {
	rec, err := s.kv.Get(ctx, storage.Key(sessionID, storage.KeyCartItems))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	lines, err := Decode(rec.Value)
	if err != nil {
		return nil, rec.Version, nil
	}
	return lines, rec.Version, nil
}

func (s *LineStore) Save(ctx context.Context, sessionID string, lines []domain.CartLine, expected uint64) (uint64, error) {
	value, err := Encode(lines)
	if err != nil {
		return 0, err
	}

	version, err := s.kv.Put(ctx, storage.Key(sessionID, storage.KeyCartItems), value, expected)
	if errors.Is(err, storage.ErrVersionConflict) {
		return 0, fmt.Errorf("%w: %w", app.ErrConflict, err)
	}
	return version, err
}

func Encode(lines []domain.CartLine) ([]byte, error) {
	recs := make([]lineRecord, 0, len(lines))
	for _, l := range lines {
		recs = append(recs, lineRecord{
			ID:           l.ProductID,
			Name:         l.Name,
			Price:        json.Number(l.UnitPrice.String()),
			CountInStock: l.CachedStock,
			Quantity:     l.Quantity,
		})
	}
	return json.Marshal(recs)
}

func Decode(value []byte) ([]domain.CartLine, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()

	var recs []lineRecord
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(recs))
	for _, r := range recs {
		price, err := decimal.NewFromString(r.Price.String())
		if err != nil {
			return nil, fmt.Errorf("decode price of %q: %w", r.ID, err)
		}
		if r.ID == "" || r.Quantity <= 0 {
			continue
		}
		lines = append(lines, domain.CartLine{
			ProductID:   r.ID,
			Name:        r.Name,
			UnitPrice:   price,
			Quantity:    r.Quantity,
			CachedStock: max(r.CountInStock, 0),
		})
	}
	return lines, nil
}
