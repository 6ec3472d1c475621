package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Hour), mr
}

func TestBumpCountsDeliveries(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	n, err := tracker.Bump(ctx, "topic/0/17")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tracker.Bump(ctx, "topic/0/17")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// A different message has its own count.
	n, err = tracker.Bump(ctx, "topic/0/18")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestClearResetsCount(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	_, err := tracker.Bump(ctx, "topic/0/17")
	require.NoError(t, err)
	require.NoError(t, tracker.Clear(ctx, "topic/0/17"))

	n, err := tracker.Bump(ctx, "topic/0/17")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAttemptCountExpires(t *testing.T) {
	tracker, mr := testTracker(t)
	ctx := context.Background()

	_, err := tracker.Bump(ctx, "topic/0/17")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	n, err := tracker.Bump(ctx, "topic/0/17")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBatchKeys(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	seen, err := tracker.Seen(ctx, "b-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, tracker.Mark(ctx, "b-1"))

	seen, err = tracker.Seen(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
