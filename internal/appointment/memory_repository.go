package appointment

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps snapshots in process. It backs the CLI when no
// Postgres DSN is configured and serves as the fake in tests.
type MemoryRepository struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]Snapshot
	order     []uuid.UUID
	events    []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snapshots: make(map[uuid.UUID]Snapshot)}
}

func (r *MemoryRepository) SaveSnapshot(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := snap.Calendar.ID
	if _, ok := r.snapshots[id]; !ok {
		r.order = append(r.order, id)
	}
	r.snapshots[id] = cloneSnapshot(snap)
	return nil
}

func (r *MemoryRepository) LoadSnapshot(_ context.Context, calendarID uuid.UUID) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.snapshots[calendarID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	out := cloneSnapshot(snap)
	return &out, nil
}

func (r *MemoryRepository) ListCalendars(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded event log in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Calendar.Slots = slices.Clone(s.Calendar.Slots)
	s.Records = slices.Clone(s.Records)
	s.Pending = slices.Clone(s.Pending)
	return s
}
