package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("calendar lock not acquired")
)

// CalendarLocker guards scheduling on one calendar across processes that
// share a snapshot store. It satisfies appointment.Locker.
type CalendarLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	wait   time.Duration
}

// NewCalendarLocker creates a locker that uses a per calendar Redis key.
// A caller that finds the key taken retries for up to wait before giving up.
func NewCalendarLocker(client *redis.Client, ttl, wait time.Duration) *CalendarLocker {
	return &CalendarLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		wait:   wait,
	}
}

func lockKey(calendarID uuid.UUID) string {
	return fmt.Sprintf("lock:calendar:%s", calendarID.String())
}

// WithCalendarLock runs fn while holding the calendar's key. The key's
// expiry is pushed forward while fn runs; if the key is lost, fn's context
// is cancelled.
func (l *CalendarLocker) WithCalendarLock(ctx context.Context, calendarID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(calendarID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	fnCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(fnCtx, cancel, key, token)
	}()

	defer func() {
		cancel()
		wg.Wait()
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	return fn(fnCtx)
}

func (l *CalendarLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire calendar lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
  return 0
end
`)

func (l *CalendarLocker) keepAlive(ctx context.Context, cancel context.CancelFunc, key, token string) {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if ctx.Err() != nil {
				return
			}
			if err != nil || n == 0 {
				cancel()
				return
			}
		}
	}
}

func (l *CalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}
