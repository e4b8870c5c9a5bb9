// Package repotest holds the behaviour every repo.Store driver must share.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

// Run exercises s. Collections are prefixed with prefix so several runs can
// share one backend.
func Run(t *testing.T, s repo.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	col := prefix + "checks"

	t.Run("empty collection", func(t *testing.T) {
		ids, err := s.List(ctx, prefix+"nothing")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("create read list", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, col, "b", []byte(`{"id":"b"}`)))
		require.NoError(t, s.Create(ctx, col, "a", []byte(`{"id":"a"}`)))

		got, err := s.Read(ctx, col, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a"}`, string(got))

		ids, err := s.List(ctx, col)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("create twice", func(t *testing.T) {
		err := s.Create(ctx, col, "a", []byte(`{"id":"other"}`))
		assert.True(t, errors.Is(err, repo.ErrExists), "got %v", err)

		got, err := s.Read(ctx, col, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a"}`, string(got))
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, col, "a", []byte(`{"id":"a","state":"up"}`)))
		got, err := s.Read(ctx, col, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a","state":"up"}`, string(got))
	})

	t.Run("missing records", func(t *testing.T) {
		_, err := s.Read(ctx, col, "zz")
		assert.True(t, errors.Is(err, repo.ErrNotFound), "read: %v", err)
		err = s.Update(ctx, col, "zz", []byte(`{}`))
		assert.True(t, errors.Is(err, repo.ErrNotFound), "update: %v", err)
		err = s.Delete(ctx, col, "zz")
		assert.True(t, errors.Is(err, repo.ErrNotFound), "delete: %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, col, "b"))
		ids, err := s.List(ctx, col)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids)
	})

	t.Run("concurrent updates of distinct ids", func(t *testing.T) {
		par := prefix + "par"
		for i := 0; i < 8; i++ {
			require.NoError(t, s.Create(ctx, par, fmt.Sprintf("id%d", i), []byte(`{}`)))
		}
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Update(ctx, par, fmt.Sprintf("id%d", i), []byte(fmt.Sprintf(`{"n":%d}`, i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		got, err := s.Read(ctx, par, "id5")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":5}`, string(got))
	})
}
