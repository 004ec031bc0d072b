package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordAndContains(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	assert.False(t, s.Contains("k1"))

	require.NoError(t, s.Record(ctx, "k1"))
	assert.True(t, s.Contains("k1"))
	assert.Equal(t, 1, s.Len())

	// Idempotent: recording again changes nothing.
	require.NoError(t, s.Record(ctx, "k1"))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_LoadPrunesExpired(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	s.records["old"] = now.Add(-Retention - time.Hour)
	s.records["fresh"] = now.Add(-6 * 24 * time.Hour)

	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.Contains("old"))
	assert.True(t, s.Contains("fresh"))
}
