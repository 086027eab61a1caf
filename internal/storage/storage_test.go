package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every Storage must share.
func runContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "never-set")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "ecommerce-cart", []byte(`[{"sku":"A"}]`)))

		got, err := s.Get(ctx, "ecommerce-cart")
		require.NoError(t, err)
		assert.Equal(t, `[{"sku":"A"}]`, string(got))
	})

	t.Run("set replaces", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "replace", []byte("first value, longer")))
		require.NoError(t, s.Set(ctx, "replace", []byte("[]")))

		got, err := s.Get(ctx, "replace")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(got))
	})

	t.Run("keys are isolated", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "profile/a", []byte("a")))
		require.NoError(t, s.Set(ctx, "profile/b", []byte("b")))

		a, err := s.Get(ctx, "profile/a")
		require.NoError(t, err)
		assert.Equal(t, "a", string(a))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, "race", []byte("[]")))
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, "race")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(got))
	})
}

func TestMemory(t *testing.T) {
	runContract(t, NewMemory())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	value := []byte("abc")

	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	runContract(t, f)
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "ecommerce-cart", []byte("[1]")))

	second, err := NewFile(dir)
	require.NoError(t, err)
	got, err := second.Get(ctx, "ecommerce-cart")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got))
}
