package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEmptyWhenUnset(t *testing.T) {
	s := NewMemoryStore()

	slots, err := s.Get(context.Background(), "cafe", "user1", 7)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NotNil(t, slots)
}

func TestMergeLayersUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	merged, err := s.Merge(ctx, "cafe", "user1", 7, map[string]string{"time": "18:00"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"time": "18:00"}, merged)

	merged, err = s.Merge(ctx, "cafe", "user1", 7, map[string]string{"date": "2026-09-01"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"time": "18:00", "date": "2026-09-01"}, merged)

	// Empty incoming values never clobber stored ones.
	merged, err = s.Merge(ctx, "cafe", "user1", 7, map[string]string{"time": ""})
	require.NoError(t, err)
	assert.Equal(t, "18:00", merged["time"])

	// Non-empty incoming values win.
	merged, err = s.Merge(ctx, "cafe", "user1", 7, map[string]string{"time": "19:00"})
	require.NoError(t, err)
	assert.Equal(t, "19:00", merged["time"])
}

func TestMergeIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.Merge(ctx, "cafe", "user1", 7, map[string]string{"a": "x"})
	require.NoError(t, err)
	second, err := s.Merge(ctx, "cafe", "user1", 7, map[string]string{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSessionsKeyedPerTriple(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Merge(ctx, "cafe", "user1", 7, map[string]string{"time": "18:00"})
	require.NoError(t, err)

	other, err := s.Get(ctx, "cafe", "user2", 7)
	require.NoError(t, err)
	assert.Empty(t, other)

	other, err = s.Get(ctx, "cafe", "user1", 8)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestEntriesExpire(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Merge(ctx, "cafe", "user1", 7, map[string]string{"time": "18:00"})
	require.NoError(t, err)

	now = now.Add(TTL - time.Minute)
	slots, err := s.Get(ctx, "cafe", "user1", 7)
	require.NoError(t, err)
	assert.Equal(t, "18:00", slots["time"])

	now = now.Add(2 * time.Minute)
	slots, err = s.Get(ctx, "cafe", "user1", 7)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// A merge after expiry starts from a clean slate.
	merged, err := s.Merge(ctx, "cafe", "user1", 7, map[string]string{"date": "2026-09-01"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"date": "2026-09-01"}, merged)
}
