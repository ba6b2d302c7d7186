package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/ctxrelay/internal/errors"
)

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	id, err := s.Put(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, id, 36, "ids are canonical UUID strings")

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	_, err := NewMemoryStore(0).Get(context.Background(), "doesnotexist")
	assert.True(t, appErr.IsNotFound(err))
}

func TestMemoryStore_Full(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	for i := 0; i < 2; i++ {
		_, err := s.Put(ctx, fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}

	_, err := s.Put(ctx, "overflow")
	assert.True(t, appErr.IsStorageFull(err))
	assert.True(t, appErr.IsStorage(err))
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_RegeneratesCollidingID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	ids := []string{"same", "same", "other"}
	s.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := s.Put(ctx, "a")
	require.NoError(t, err)
	second, err := s.Put(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
	got, _ := s.Get(ctx, "same")
	assert.Equal(t, "a", got, "existing record must not be overwritten")
}

func TestMemoryStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Put(ctx, fmt.Sprintf("p%d", i))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("p%d", i), got)
	}
	assert.Equal(t, n, s.Len())
}
