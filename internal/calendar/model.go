package calendar

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotFree      SlotStatus = "free"
	SlotConfirmed SlotStatus = "confirmed"
)

var (
	ErrInvalidConfig   = errors.New("invalid calendar configuration")
	ErrOverlap         = errors.New("slot overlaps an existing slot")
	ErrDuplicateSlot   = errors.New("slot id already exists")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotNotFree     = errors.New("slot is not free")
	ErrSlotAlreadyFree = errors.New("slot is already free")
)

// Slot is one bookable unit of time. Occupant holds the id of the request
// that confirmed it and is uuid.Nil while the slot is free.
type Slot struct {
	ID       uuid.UUID     `json:"id"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Status   SlotStatus    `json:"status"`
	Occupant uuid.UUID     `json:"occupant,omitempty"`
}

func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Contains reports whether t falls in [Start, End).
func (s Slot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End())
}

func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End()) && other.Start.Before(s.End())
}

func (s Slot) IsFree() bool {
	return s.Status == SlotFree
}

// Snapshot is the plain-data form of a Calendar used for persistence.
type Snapshot struct {
	ID     uuid.UUID `json:"id"`
	Doctor string    `json:"doctor"`
	Slots  []Slot    `json:"slots"`
}
