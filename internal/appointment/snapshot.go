package appointment

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

// Snapshot captures a calendar's slots, its processed requests and the
// requests still queued.
func (s *Service) Snapshot(ctx context.Context, calendarID uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	err := s.withCalendar(ctx, calendarID, func(_ context.Context, cal *calendar.Calendar, q *queue.Queue) error {
		snap.Calendar = cal.Snapshot()
		snap.Pending = q.Pending()

		s.mu.RLock()
		for _, rec := range s.records {
			if rec.CalendarID == calendarID && rec.Status != StatusPending {
				snap.Records = append(snap.Records, *rec)
			}
		}
		s.mu.RUnlock()

		sort.Slice(snap.Records, func(i, j int) bool {
			return snap.Records[i].Request.Seq < snap.Records[j].Request.Seq
		})
		return nil
	})
	return snap, err
}

// Restore replaces (or adds) a calendar from a snapshot after checking that
// every confirmed slot and every confirmed record point at each other.
func (s *Service) Restore(ctx context.Context, snap Snapshot) error {
	cal, err := calendar.Restore(snap.Calendar)
	if err != nil {
		return err
	}
	q := queue.New()
	if err := q.Restore(snap.Pending); err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}
	if err := checkOccupancy(cal, snap.Records); err != nil {
		return err
	}

	return s.locker.WithCalendarLock(ctx, cal.ID, func(_ context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		for id, rec := range s.records {
			if rec.CalendarID == cal.ID {
				delete(s.records, id)
			}
		}
		for i := range snap.Records {
			rec := snap.Records[i]
			rec.CalendarID = cal.ID
			s.records[rec.Request.ID] = &rec
		}
		for _, req := range snap.Pending {
			s.records[req.ID] = &Record{
				Request:    req,
				CalendarID: cal.ID,
				Status:     StatusPending,
				UpdatedAt:  s.now(),
			}
		}
		s.calendars[cal.ID] = cal
		s.queues[cal.ID] = q

		s.log.Info().
			Str("calendar_id", cal.ID.String()).
			Int("slots", cal.Len()).
			Int("records", len(snap.Records)).
			Int("pending", len(snap.Pending)).
			Msg("calendar restored")
		return nil
	})
}

func checkOccupancy(cal *calendar.Calendar, records []Record) error {
	confirmed := make(map[uuid.UUID]uuid.UUID)
	for _, rec := range records {
		if rec.Status == StatusConfirmed {
			confirmed[rec.Request.ID] = rec.SlotID
		}
	}

	occupied := 0
	for _, slot := range cal.Slots() {
		if slot.Status != calendar.SlotConfirmed {
			continue
		}
		occupied++
		slotID, ok := confirmed[slot.Occupant]
		if !ok || slotID != slot.ID {
			return fmt.Errorf("%w: slot %s is held by %s", ErrInconsistentSnapshot, slot.ID, slot.Occupant)
		}
	}
	if occupied != len(confirmed) {
		return fmt.Errorf("%w: %d confirmed records for %d confirmed slots", ErrInconsistentSnapshot, len(confirmed), occupied)
	}
	return nil
}

// Save writes the calendar's snapshot to the repository.
func (s *Service) Save(ctx context.Context, calendarID uuid.UUID) error {
	snap, err := s.Snapshot(ctx, calendarID)
	if err != nil {
		return err
	}
	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load restores one calendar from the repository.
func (s *Service) Load(ctx context.Context, calendarID uuid.UUID) error {
	snap, err := s.repo.LoadSnapshot(ctx, calendarID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	return s.Restore(ctx, *snap)
}

// LoadAll restores every calendar the repository knows about.
func (s *Service) LoadAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListCalendars(ctx)
	if err != nil {
		return 0, fmt.Errorf("list calendars: %w", err)
	}
	for i, id := range ids {
		if err := s.Load(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// SaveAll writes a snapshot of every registered calendar.
func (s *Service) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.calendars))
	for id := range s.calendars {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if err := s.Save(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
