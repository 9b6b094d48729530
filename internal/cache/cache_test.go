package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "network", []byte("info"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	value, ok, err := m.Get(ctx, "network")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("info"), value)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "network")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, _ = m.Get(ctx, "forever")
	require.True(t, ok)

	require.NoError(t, m.Delete(ctx, "forever"))
	_, ok, _ = m.Get(ctx, "forever")
	require.False(t, ok)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	value, _, _ := m.Get(ctx, "k")
	require.Equal(t, "abc", string(value))
	value[1] = 'z'
	again, _, _ := m.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}
