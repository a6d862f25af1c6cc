package calendar

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Calendar owns the slots of a single doctor, kept ordered by start time.
// It is not safe for concurrent use; callers serialise access per calendar.
type Calendar struct {
	ID     uuid.UUID
	Doctor string

	slots []*Slot
	byID  map[uuid.UUID]*Slot
	step  time.Duration
}

func New(id uuid.UUID, doctor string) (*Calendar, error) {
	doctor = strings.TrimSpace(doctor)
	if doctor == "" {
		return nil, fmt.Errorf("%w: doctor name cannot be empty", ErrInvalidConfig)
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Calendar{
		ID:     id,
		Doctor: doctor,
		byID:   make(map[uuid.UUID]*Slot),
	}, nil
}

// Restore rebuilds a calendar from a snapshot, re-checking every slot.
func Restore(snap Snapshot) (*Calendar, error) {
	c, err := New(snap.ID, snap.Doctor)
	if err != nil {
		return nil, err
	}
	if _, err := c.AddSlots(snap.Slots); err != nil {
		return nil, fmt.Errorf("restore calendar %s: %w", snap.ID, err)
	}
	return c, nil
}

// AddSlot inserts a slot. A slot without status is stored as free; a
// confirmed slot must name its occupant.
func (c *Calendar) AddSlot(s Slot) error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidConfig)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, exists := c.byID[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSlot, s.ID)
	}

	switch s.Status {
	case "", SlotFree:
		if s.Occupant != uuid.Nil {
			return fmt.Errorf("%w: free slot %s has an occupant", ErrInvalidConfig, s.ID)
		}
		s.Status = SlotFree
	case SlotConfirmed:
		if s.Occupant == uuid.Nil {
			return fmt.Errorf("%w: confirmed slot %s has no occupant", ErrInvalidConfig, s.ID)
		}
	default:
		return fmt.Errorf("%w: unknown slot status %q", ErrInvalidConfig, s.Status)
	}

	i := c.searchStart(s.Start)
	if i > 0 && c.slots[i-1].Overlaps(s) {
		return overlapError(*c.slots[i-1])
	}
	if i < len(c.slots) && c.slots[i].Overlaps(s) {
		return overlapError(*c.slots[i])
	}

	stored := s
	c.slots = slices.Insert(c.slots, i, &stored)
	c.byID[stored.ID] = &stored
	if c.step == 0 || stored.Duration < c.step {
		c.step = stored.Duration
	}
	return nil
}

// AddSlots inserts slots in order and stops at the first failure.
func (c *Calendar) AddSlots(slots []Slot) (int, error) {
	for i, s := range slots {
		if err := c.AddSlot(s); err != nil {
			return i, err
		}
	}
	return len(slots), nil
}

func overlapError(existing Slot) error {
	return fmt.Errorf("%w: %s - %s", ErrOverlap,
		existing.Start.Format("2006-01-02 15:04"), existing.End().Format("2006-01-02 15:04"))
}

// searchStart returns the index of the first slot starting at or after t.
func (c *Calendar) searchStart(t time.Time) int {
	return sort.Search(len(c.slots), func(i int) bool {
		return !c.slots[i].Start.Before(t)
	})
}

// FindSlotAt returns the slot whose range starts at or contains t.
func (c *Calendar) FindSlotAt(t time.Time) (Slot, bool) {
	i := sort.Search(len(c.slots), func(i int) bool {
		return c.slots[i].Start.After(t)
	})
	if i == 0 {
		return Slot{}, false
	}
	if s := c.slots[i-1]; s.Contains(t) {
		return *s, true
	}
	return Slot{}, false
}

// SlotsInRange yields copies of the slots whose start lies in [start, end],
// in start order. The sequence can be ranged over any number of times.
func (c *Calendar) SlotsInRange(start, end time.Time) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		for i := c.searchStart(start); i < len(c.slots); i++ {
			s := c.slots[i]
			if s.Start.After(end) {
				return
			}
			if !yield(*s) {
				return
			}
		}
	}
}

func (c *Calendar) MarkConfirmed(slotID, occupant uuid.UUID) error {
	s, ok := c.byID[slotID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}
	if s.Status != SlotFree {
		return fmt.Errorf("%w: %s", ErrSlotNotFree, slotID)
	}
	if occupant == uuid.Nil {
		return fmt.Errorf("%w: occupant is required", ErrInvalidConfig)
	}
	s.Status = SlotConfirmed
	s.Occupant = occupant
	return nil
}

func (c *Calendar) MarkFree(slotID uuid.UUID) error {
	s, ok := c.byID[slotID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}
	if s.Status == SlotFree {
		return fmt.Errorf("%w: %s", ErrSlotAlreadyFree, slotID)
	}
	s.Status = SlotFree
	s.Occupant = uuid.Nil
	return nil
}

func (c *Calendar) Slot(id uuid.UUID) (Slot, error) {
	s, ok := c.byID[id]
	if !ok {
		return Slot{}, fmt.Errorf("%w: %s", ErrSlotNotFound, id)
	}
	return *s, nil
}

// Slots returns every slot ordered by start time.
func (c *Calendar) Slots() []Slot {
	out := make([]Slot, 0, len(c.slots))
	for _, s := range c.slots {
		out = append(out, *s)
	}
	return out
}

func (c *Calendar) FreeSlots() []Slot {
	var out []Slot
	for _, s := range c.slots {
		if s.IsFree() {
			out = append(out, *s)
		}
	}
	return out
}

func (c *Calendar) Len() int {
	return len(c.slots)
}

// Step is the shortest slot duration on the calendar, zero when empty.
func (c *Calendar) Step() time.Duration {
	return c.step
}

func (c *Calendar) Snapshot() Snapshot {
	return Snapshot{
		ID:     c.ID,
		Doctor: c.Doctor,
		Slots:  c.Slots(),
	}
}

func (c *Calendar) String() string {
	return fmt.Sprintf("Calendar(%s, slots=%d)", c.Doctor, len(c.slots))
}
