// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/okhati-storefront/internal/storage"
)

func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, storage.Key("s1", storage.KeyCartItems))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("create then update", func(t *testing.T) {
		s := newStore(t)
		key := storage.Key("s1", storage.KeyCartItems)

		v1, err := s.Put(ctx, key, []byte(`[]`), 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v1)

		v2, err := s.Put(ctx, key, []byte(`[{"id":"a"}]`), v1)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), v2)

		rec, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"a"}]`, string(rec.Value))
		assert.Equal(t, v2, rec.Version)
	})

	t.Run("stale version rejected", func(t *testing.T) {
		s := newStore(t)
		key := storage.Key("s1", storage.KeyCartItems)

		_, err := s.Put(ctx, key, []byte(`[]`), 0)
		require.NoError(t, err)

		_, err = s.Put(ctx, key, []byte(`[]`), 0)
		require.ErrorIs(t, err, storage.ErrVersionConflict)

		_, err = s.Put(ctx, key, []byte(`[]`), 7)
		require.ErrorIs(t, err, storage.ErrVersionConflict)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, storage.Key("a", storage.KeyCurrentUser), []byte(`{"id":1}`), 0)
		require.NoError(t, err)

		_, err = s.Get(ctx, storage.Key("b", storage.KeyCurrentUser))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete resets version", func(t *testing.T) {
		s := newStore(t)
		key := storage.Key("s1", storage.KeyCurrentUser)
		_, err := s.Put(ctx, key, []byte(`{}`), 0)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, key))
		require.NoError(t, s.Delete(ctx, key))

		v, err := s.Put(ctx, key, []byte(`{}`), 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)
	})

	t.Run("concurrent writers with same version: exactly one wins", func(t *testing.T) {
		s := newStore(t)
		key := storage.Key("s1", storage.KeyCartItems)
		v, err := s.Put(ctx, key, []byte(`[]`), 0)
		require.NoError(t, err)

		const N = 20
		var (
			mu   sync.Mutex
			wins int
		)
		var g errgroup.Group
		for i := 0; i < N; i++ {
			g.Go(func() error {
				_, err := s.Put(ctx, key, []byte(`[]`), v)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return nil
				}
				if errors.Is(err, storage.ErrVersionConflict) {
					return nil
				}
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 1, wins)
	})
}
