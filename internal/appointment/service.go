package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
	redisclient "github.com/hackgods/priority-appointment-scheduling/internal/redis"
)

const (
	EventRequestSubmitted    = "REQUEST_SUBMITTED"
	EventRequestConfirmed    = "REQUEST_CONFIRMED"
	EventRequestRejected     = "REQUEST_REJECTED"
	EventAppointmentCanceled = "APPOINTMENT_CANCELLED"
	EventAppointmentMoved    = "APPOINTMENT_RESCHEDULED"
	EventBatchProcessed      = "BATCH_PROCESSED"
)

var (
	ErrCalendarNotFound        = errors.New("calendar not found")
	ErrRequestNotFound         = errors.New("request not found")
	ErrRequestNotConfirmed     = fmt.Errorf("%w: request is not confirmed", ErrRequestNotFound)
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCalendarBusy            = errors.New("calendar is busy, please retry")
	ErrInconsistentSnapshot    = errors.New("snapshot slots and records disagree")
)

// Service is the scheduler. It owns the calendars, their request queues and
// the request ledger.
type Service struct {
	repo   Repository
	locker Locker
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	calendars map[uuid.UUID]*calendar.Calendar
	queues    map[uuid.UUID]*queue.Queue
	records   map[uuid.UUID]*Record
}

func NewService(repo Repository, locker Locker, log zerolog.Logger) *Service {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		log:       log.With().Str("module", "scheduler").Logger(),
		now:       time.Now,
		calendars: make(map[uuid.UUID]*calendar.Calendar),
		queues:    make(map[uuid.UUID]*queue.Queue),
		records:   make(map[uuid.UUID]*Record),
	}
}

// CreateCalendar registers an empty calendar for a doctor.
func (s *Service) CreateCalendar(ctx context.Context, doctor string) (CalendarInfo, error) {
	cal, err := calendar.New(uuid.New(), doctor)
	if err != nil {
		return CalendarInfo{}, err
	}
	s.register(cal, queue.New())
	s.log.Info().Str("calendar_id", cal.ID.String()).Str("doctor", cal.Doctor).Msg("calendar created")
	return s.CalendarInfo(ctx, cal.ID)
}

func (s *Service) register(cal *calendar.Calendar, q *queue.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[cal.ID] = cal
	s.queues[cal.ID] = q
}

func (s *Service) lookup(calendarID uuid.UUID) (*calendar.Calendar, *queue.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cal, ok := s.calendars[calendarID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCalendarNotFound, calendarID)
	}
	return cal, s.queues[calendarID], nil
}

// withCalendar runs fn while holding the calendar's lock.
func (s *Service) withCalendar(ctx context.Context, calendarID uuid.UUID, fn func(ctx context.Context, cal *calendar.Calendar, q *queue.Queue) error) error {
	if _, _, err := s.lookup(calendarID); err != nil {
		return err
	}

	err := s.locker.WithCalendarLock(ctx, calendarID, func(lockCtx context.Context) error {
		// Restore swaps the calendar under this lock, so resolve it only now.
		cal, q, err := s.lookup(calendarID)
		if err != nil {
			return err
		}
		return fn(lockCtx, cal, q)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrCalendarBusy
	}
	return err
}

func (s *Service) GenerateSlots(ctx context.Context, calendarID uuid.UUID, p GenerateParams) (int, error) {
	slots, err := calendar.Generate(p.StartDate, p.EndDate, p.Hours, p.SlotDuration, p.options()...)
	if err != nil {
		return 0, err
	}

	var added int
	err = s.withCalendar(ctx, calendarID, func(_ context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		added, err = cal.AddSlots(slots)
		return err
	})
	if err != nil {
		return added, fmt.Errorf("add generated slots: %w", err)
	}

	s.log.Info().
		Str("calendar_id", calendarID.String()).
		Int("slots", added).
		Str("hours", p.Hours.String()).
		Dur("slot_duration", p.SlotDuration).
		Msg("slots generated")
	return added, nil
}

func (s *Service) AddSlot(ctx context.Context, calendarID uuid.UUID, slot calendar.Slot) error {
	return s.withCalendar(ctx, calendarID, func(_ context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		return cal.AddSlot(slot)
	})
}

// Submit queues a request on the calendar's own queue.
func (s *Service) Submit(ctx context.Context, calendarID uuid.UUID, req queue.Request) (queue.Request, error) {
	var stored queue.Request
	err := s.withCalendar(ctx, calendarID, func(lockCtx context.Context, _ *calendar.Calendar, q *queue.Queue) error {
		if req.ID != uuid.Nil {
			if _, err := s.Record(req.ID); err == nil {
				return fmt.Errorf("%w: request %s was already submitted", ErrInvalidStatusTransition, req.ID)
			}
		}

		var err error
		stored, err = q.Submit(req)
		if err != nil {
			return err
		}

		s.putRecord(&Record{
			Request:    stored,
			CalendarID: calendarID,
			Status:     StatusPending,
			UpdatedAt:  s.now(),
		})
		s.logEvent(lockCtx, calendarID, &stored.ID, EventRequestSubmitted, map[string]any{
			"priority":      stored.Priority.String(),
			"seq":           stored.Seq,
			"desired_start": stored.DesiredStart,
		})
		return nil
	})
	if err != nil {
		return queue.Request{}, err
	}
	return stored, nil
}

// Withdraw removes a request that has not been processed yet.
func (s *Service) Withdraw(ctx context.Context, calendarID, requestID uuid.UUID) (queue.Request, error) {
	var removed queue.Request
	err := s.withCalendar(ctx, calendarID, func(_ context.Context, _ *calendar.Calendar, q *queue.Queue) error {
		var err error
		removed, err = q.Remove(requestID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.records, requestID)
		s.mu.Unlock()
		return nil
	})
	return removed, err
}

// Schedule assigns a slot to a single request. Failing to find a slot is
// reported as a rejected Outcome, not as an error.
func (s *Service) Schedule(ctx context.Context, req queue.Request, calendarID uuid.UUID) (Outcome, error) {
	var out Outcome
	err := s.withCalendar(ctx, calendarID, func(lockCtx context.Context, cal *calendar.Calendar, q *queue.Queue) error {
		if err := req.Validate(); err != nil {
			return err
		}
		// A queued request scheduled directly must leave its queue first.
		if rec, err := s.Record(req.ID); err == nil && rec.Status == StatusPending {
			if rec.CalendarID != calendarID {
				return fmt.Errorf("%w: request %s is queued on calendar %s", ErrInvalidStatusTransition, req.ID, rec.CalendarID)
			}
			if _, err := q.Remove(req.ID); err != nil {
				return fmt.Errorf("dequeue request: %w", err)
			}
		}
		var err error
		out, err = s.schedule(lockCtx, cal, req)
		return err
	})
	return out, err
}

// schedule runs the allocation algorithm. The caller holds the calendar lock.
func (s *Service) schedule(ctx context.Context, cal *calendar.Calendar, req queue.Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	if rec, err := s.Record(req.ID); err == nil && rec.Status != StatusPending {
		return Outcome{}, fmt.Errorf("%w: request %s is %s", ErrInvalidStatusTransition, req.ID, rec.Status)
	}

	rec := &Record{
		Request:    req,
		CalendarID: cal.ID,
		UpdatedAt:  s.now(),
	}

	slot, found := findSlot(cal, req)
	if !found {
		rec.Status = StatusRejected
		rec.Reason = ReasonNoAvailableSlot
		s.putRecord(rec)

		s.log.Info().
			Str("calendar_id", cal.ID.String()).
			Str("request_id", req.ID.String()).
			Str("priority", req.Priority.String()).
			Time("desired_start", req.DesiredStart).
			Msg("request rejected: no available slot")
		s.logEvent(ctx, cal.ID, &req.ID, EventRequestRejected, map[string]any{
			"reason":        ReasonNoAvailableSlot,
			"desired_start": req.DesiredStart,
			"flexibility":   req.Flexibility.String(),
		})

		return Outcome{RequestID: req.ID, Status: StatusRejected, Reason: ReasonNoAvailableSlot}, nil
	}

	if err := cal.MarkConfirmed(slot.ID, req.ID); err != nil {
		return Outcome{}, fmt.Errorf("confirm slot: %w", err)
	}

	offset := slot.Start.Sub(req.DesiredStart)
	rec.Status = StatusConfirmed
	rec.SlotID = slot.ID
	rec.OffsetApplied = offset
	s.putRecord(rec)

	s.log.Info().
		Str("calendar_id", cal.ID.String()).
		Str("request_id", req.ID.String()).
		Str("priority", req.Priority.String()).
		Time("slot_start", slot.Start).
		Dur("offset", offset).
		Msg("request confirmed")
	s.logEvent(ctx, cal.ID, &req.ID, EventRequestConfirmed, map[string]any{
		"slot_id":        slot.ID.String(),
		"slot_start":     slot.Start,
		"offset_applied": offset.String(),
	})

	return Outcome{
		RequestID:     req.ID,
		Status:        StatusConfirmed,
		SlotID:        slot.ID,
		SlotStart:     slot.Start,
		OffsetApplied: offset,
	}, nil
}

// findSlot returns the free slot whose start is nearest the desired start
// within [desired-flex, desired+flex]. Earlier wins on equal distance.
func findSlot(cal *calendar.Calendar, req queue.Request) (calendar.Slot, bool) {
	var (
		best     calendar.Slot
		bestDist time.Duration
		found    bool
	)
	for slot := range cal.SlotsInRange(req.EarliestAcceptable(), req.LatestAcceptable()) {
		if !slot.IsFree() {
			continue
		}
		dist := slot.Start.Sub(req.DesiredStart).Abs()
		if !found || dist < bestDist {
			best, bestDist, found = slot, dist, true
		}
		// Slots come in start order; later ones are only farther away.
		if !slot.Start.Before(req.DesiredStart) {
			break
		}
	}
	return best, found
}

// Cancel frees the slot held by a confirmed request and marks the request
// cancelled. Cancelling anything that is not currently confirmed fails.
func (s *Service) Cancel(ctx context.Context, requestID, calendarID uuid.UUID) error {
	return s.withCalendar(ctx, calendarID, func(lockCtx context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		s.mu.Lock()
		rec, ok := s.records[requestID]
		if !ok || rec.Status != StatusConfirmed || rec.CalendarID != calendarID {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrRequestNotConfirmed, requestID)
		}
		s.mu.Unlock()

		if err := cal.MarkFree(rec.SlotID); err != nil {
			return fmt.Errorf("free slot: %w", err)
		}

		s.mu.Lock()
		rec.Status = StatusCancelled
		rec.UpdatedAt = s.now()
		s.mu.Unlock()

		s.log.Info().
			Str("calendar_id", calendarID.String()).
			Str("request_id", requestID.String()).
			Str("slot_id", rec.SlotID.String()).
			Msg("appointment cancelled")
		s.logEvent(lockCtx, calendarID, &requestID, EventAppointmentCanceled, map[string]any{
			"slot_id": rec.SlotID.String(),
		})
		return nil
	})
}

// Reschedule moves a confirmed appointment to the free slot nearest
// newDesired within flexibility. The new slot is taken before the old one is
// released. When nothing fits, the appointment stays where it was and a
// rejected Outcome is returned.
func (s *Service) Reschedule(ctx context.Context, requestID, calendarID uuid.UUID, newDesired time.Time, flexibility time.Duration) (Outcome, error) {
	var out Outcome
	err := s.withCalendar(ctx, calendarID, func(lockCtx context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		current, err := s.Record(requestID)
		if err != nil || current.Status != StatusConfirmed || current.CalendarID != calendarID {
			return fmt.Errorf("%w: %s", ErrRequestNotConfirmed, requestID)
		}

		moved := current.Request
		moved.DesiredStart = newDesired
		moved.Flexibility = flexibility
		if err := moved.Validate(); err != nil {
			return err
		}

		slot, found := findSlot(cal, moved)
		if !found {
			s.log.Info().
				Str("calendar_id", calendarID.String()).
				Str("request_id", requestID.String()).
				Time("desired_start", newDesired).
				Msg("reschedule rejected: no available slot")
			out = Outcome{RequestID: requestID, Status: StatusRejected, Reason: ReasonNoAvailableSlot}
			return nil
		}

		if err := cal.MarkConfirmed(slot.ID, requestID); err != nil {
			return fmt.Errorf("confirm slot: %w", err)
		}
		if err := cal.MarkFree(current.SlotID); err != nil {
			_ = cal.MarkFree(slot.ID)
			return fmt.Errorf("free previous slot: %w", err)
		}

		offset := slot.Start.Sub(newDesired)
		s.mu.Lock()
		rec := s.records[requestID]
		rec.Request = moved
		rec.SlotID = slot.ID
		rec.OffsetApplied = offset
		rec.UpdatedAt = s.now()
		s.mu.Unlock()

		s.log.Info().
			Str("calendar_id", calendarID.String()).
			Str("request_id", requestID.String()).
			Str("from_slot", current.SlotID.String()).
			Time("slot_start", slot.Start).
			Dur("offset", offset).
			Msg("appointment rescheduled")
		s.logEvent(lockCtx, calendarID, &requestID, EventAppointmentMoved, map[string]any{
			"from_slot_id":   current.SlotID.String(),
			"slot_id":        slot.ID.String(),
			"slot_start":     slot.Start,
			"offset_applied": offset.String(),
		})

		out = Outcome{
			RequestID:     requestID,
			Status:        StatusConfirmed,
			SlotID:        slot.ID,
			SlotStart:     slot.Start,
			OffsetApplied: offset,
		}
		return nil
	})
	return out, err
}

func (s *Service) putRecord(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Request.ID] = rec
}

// Record returns a copy of the ledger entry for a request.
func (s *Service) Record(requestID uuid.UUID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[requestID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	return *rec, nil
}

func (s *Service) CalendarInfo(ctx context.Context, calendarID uuid.UUID) (CalendarInfo, error) {
	var info CalendarInfo
	err := s.withCalendar(ctx, calendarID, func(_ context.Context, cal *calendar.Calendar, q *queue.Queue) error {
		info = CalendarInfo{
			ID:      cal.ID,
			Doctor:  cal.Doctor,
			Slots:   cal.Len(),
			Free:    len(cal.FreeSlots()),
			Pending: q.Len(),
			Step:    cal.Step(),
		}
		return nil
	})
	return info, err
}

// Calendars lists every registered calendar ordered by doctor name.
func (s *Service) Calendars(ctx context.Context) ([]CalendarInfo, error) {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.calendars))
	for id := range s.calendars {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	infos := make([]CalendarInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.CalendarInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Doctor != infos[j].Doctor {
			return infos[i].Doctor < infos[j].Doctor
		}
		return infos[i].ID.String() < infos[j].ID.String()
	})
	return infos, nil
}

func (s *Service) PendingCount(ctx context.Context, calendarID uuid.UUID) (int, error) {
	info, err := s.CalendarInfo(ctx, calendarID)
	return info.Pending, err
}

// AvailableSlots returns free slots starting within [from, to]. Zero bounds
// are open.
func (s *Service) AvailableSlots(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]calendar.Slot, error) {
	return s.slotsBetween(ctx, calendarID, from, to, true)
}

// Slots is AvailableSlots including confirmed slots.
func (s *Service) Slots(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]calendar.Slot, error) {
	return s.slotsBetween(ctx, calendarID, from, to, false)
}

func (s *Service) slotsBetween(ctx context.Context, calendarID uuid.UUID, from, to time.Time, freeOnly bool) ([]calendar.Slot, error) {
	var out []calendar.Slot
	err := s.withCalendar(ctx, calendarID, func(_ context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		if to.IsZero() {
			to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		}
		for slot := range cal.SlotsInRange(from, to) {
			if !freeOnly || slot.IsFree() {
				out = append(out, slot)
			}
		}
		return nil
	})
	return out, err
}

// Appointments lists the confirmed slots of a calendar with their requests.
func (s *Service) Appointments(ctx context.Context, calendarID uuid.UUID) ([]Appointment, error) {
	var out []Appointment
	err := s.withCalendar(ctx, calendarID, func(_ context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, slot := range cal.Slots() {
			if slot.Status != calendar.SlotConfirmed {
				continue
			}
			rec, ok := s.records[slot.Occupant]
			if !ok {
				return fmt.Errorf("%w: slot %s occupant %s has no record", ErrInconsistentSnapshot, slot.ID, slot.Occupant)
			}
			out = append(out, Appointment{Slot: slot, Request: rec.Request, OffsetApplied: rec.OffsetApplied})
		}
		return nil
	})
	return out, err
}

func (s *Service) logEvent(ctx context.Context, calendarID uuid.UUID, requestID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:  eventType,
		CalendarID: calendarID,
		RequestID:  requestID,
		Payload:    data,
		CreatedAt:  s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("calendar_id", calendarID.String()).Msg("failed to insert event log")
	}
}
