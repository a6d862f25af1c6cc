package appointment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Locker serialises every scheduling operation against one calendar. The
// exact-match-then-fallback search is not safe under concurrent mutation.
type Locker interface {
	WithCalendarLock(ctx context.Context, calendarID uuid.UUID, fn func(ctx context.Context) error) error
}

type localLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLocalLocker returns an in-process Locker with one mutex per calendar.
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *localLocker) WithCalendarLock(ctx context.Context, calendarID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[calendarID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[calendarID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
