package redisclient

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to REDIS_ADDR and skips the test when it is unset.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCalendarLocker_ReleasesKey(t *testing.T) {
	rdb := newTestClient(t)
	locker := NewCalendarLocker(rdb, 2*time.Second, 100*time.Millisecond)
	calID := uuid.New()

	err := locker.WithCalendarLock(context.Background(), calID, func(ctx context.Context) error {
		n, err := rdb.Exists(ctx, lockKey(calID)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)

	n, err := rdb.Exists(context.Background(), lockKey(calID)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCalendarLocker_HeldLockTimesOut(t *testing.T) {
	rdb := newTestClient(t)
	locker := NewCalendarLocker(rdb, 2*time.Second, 50*time.Millisecond)
	calID := uuid.New()

	require.NoError(t, rdb.Set(context.Background(), lockKey(calID), "someone-else", time.Second).Err())
	t.Cleanup(func() { rdb.Del(context.Background(), lockKey(calID)) })

	called := false
	err := locker.WithCalendarLock(context.Background(), calID, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)

	// A foreign token is never deleted by our release.
	val, err := rdb.Get(context.Background(), lockKey(calID)).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestCalendarLocker_SerializesCallers(t *testing.T) {
	rdb := newTestClient(t)
	locker := NewCalendarLocker(rdb, 2*time.Second, 2*time.Second)
	calID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- locker.WithCalendarLock(context.Background(), calID, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.False(t, errors.Is(err, ErrLockNotAcquired))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), maxInside)
}

func TestCalendarLocker_ExtendsKeyWhileHeld(t *testing.T) {
	rdb := newTestClient(t)
	locker := NewCalendarLocker(rdb, 300*time.Millisecond, 50*time.Millisecond)
	calID := uuid.New()

	err := locker.WithCalendarLock(context.Background(), calID, func(ctx context.Context) error {
		time.Sleep(time.Second)
		require.NoError(t, ctx.Err())
		n, err := rdb.Exists(ctx, lockKey(calID)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)
}

func TestCalendarLocker_LostKeyCancelsContext(t *testing.T) {
	rdb := newTestClient(t)
	locker := NewCalendarLocker(rdb, 300*time.Millisecond, 50*time.Millisecond)
	calID := uuid.New()

	err := locker.WithCalendarLock(context.Background(), calID, func(ctx context.Context) error {
		require.NoError(t, rdb.Set(ctx, lockKey(calID), "someone-else", time.Second).Err())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, err, context.Canceled)

	val, err := rdb.Get(context.Background(), lockKey(calID)).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
	rdb.Del(context.Background(), lockKey(calID))
}
