package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Stores
// ---------------------------------------------------------------------------

func TestMemoryIdempotencyStore_AddContainsExpire(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))
	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)

	time.Sleep(20 * time.Millisecond)
	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisIdempotencyStore(client, "consumed:", time.Hour)
	ctx := context.Background()

	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, store.Add(ctx, "evt-1"))
	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, time.Hour, mr.TTL("consumed:evt-1"))

	mr.FastForward(2 * time.Hour)
	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)
}

// ---------------------------------------------------------------------------
// IdempotentHandler
// ---------------------------------------------------------------------------

func countingHandler(calls *int32, err error) Handler {
	return func(context.Context, *Event) error {
		atomic.AddInt32(calls, 1)
		return err
	}
}

func TestIdempotentHandler_DuplicateSkipped(t *testing.T) {
	var calls int32
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), countingHandler(&calls, nil), testLogger())
	ev := &Event{EventID: "evt-dup", EventType: "order.created"}

	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotentHandler_EmptyIDPassesThrough(t *testing.T) {
	var calls int32
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), countingHandler(&calls, nil), testLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, h(context.Background(), &Event{}))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	handlerErr := errors.New("processing failed")
	var calls int32
	h := IdempotentHandler(store, countingHandler(&calls, handlerErr), testLogger())
	ev := &Event{EventID: "evt-err"}

	assert.ErrorIs(t, h(context.Background(), ev), handlerErr)
	assert.ErrorIs(t, h(context.Background(), ev), handlerErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	exists, err := store.Contains(context.Background(), "evt-err")
	require.NoError(t, err)
	assert.False(t, exists)
}

type failingIdempotencyStore struct{}

func (failingIdempotencyStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingIdempotencyStore) Add(context.Context, string) error {
	return errors.New("store unavailable")
}

func TestIdempotentHandler_StoreErrorFailsOpen(t *testing.T) {
	var calls int32
	h := IdempotentHandler(failingIdempotencyStore{}, countingHandler(&calls, nil), testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
