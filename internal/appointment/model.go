package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusConfirmed RequestStatus = "confirmed"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

type RejectReason string

const (
	ReasonNoAvailableSlot RejectReason = "no_available_slot"
)

// Outcome is the result of scheduling one request. A rejection is an
// outcome, not an error.
type Outcome struct {
	RequestID     uuid.UUID     `json:"request_id"`
	Status        RequestStatus `json:"status"`
	SlotID        uuid.UUID     `json:"slot_id,omitempty"`
	SlotStart     time.Time     `json:"slot_start,omitempty"`
	OffsetApplied time.Duration `json:"offset_applied"`
	Reason        RejectReason  `json:"reason,omitempty"`
}

func (o Outcome) Confirmed() bool {
	return o.Status == StatusConfirmed
}

// Record is the ledger entry of a request. SlotID is the request side of
// the slot/occupant relation; the slot side is calendar.Slot.Occupant.
type Record struct {
	Request       queue.Request `json:"request"`
	CalendarID    uuid.UUID     `json:"calendar_id"`
	Status        RequestStatus `json:"status"`
	SlotID        uuid.UUID     `json:"slot_id,omitempty"`
	OffsetApplied time.Duration `json:"offset_applied"`
	Reason        RejectReason  `json:"reason,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Appointment joins a confirmed slot with the request occupying it.
type Appointment struct {
	Slot          calendar.Slot `json:"slot"`
	Request       queue.Request `json:"request"`
	OffsetApplied time.Duration `json:"offset_applied"`
}

type CalendarInfo struct {
	ID      uuid.UUID     `json:"id"`
	Doctor  string        `json:"doctor"`
	Slots   int           `json:"slots"`
	Free    int           `json:"free"`
	Pending int           `json:"pending"`
	Step    time.Duration `json:"step"`
}

type EventLog struct {
	ID         int64
	EventType  string
	CalendarID uuid.UUID
	RequestID  *uuid.UUID
	Payload    []byte
	CreatedAt  time.Time
}

// Snapshot is the plain-data state of one calendar: its slots, the ledger
// of processed requests and the requests still queued.
type Snapshot struct {
	Calendar calendar.Snapshot `json:"calendar"`
	Records  []Record          `json:"records"`
	Pending  []queue.Request   `json:"pending"`
}

// GenerateParams configures slot generation for a calendar.
type GenerateParams struct {
	StartDate    time.Time
	EndDate      time.Time
	Hours        calendar.WorkingHours
	SlotDuration time.Duration
	BreakStart   time.Duration
	BreakEnd     time.Duration
	Weekdays     []time.Weekday
}

func (p GenerateParams) options() []calendar.GenerateOption {
	var opts []calendar.GenerateOption
	if p.BreakEnd > 0 {
		opts = append(opts, calendar.WithBreak(p.BreakStart, p.BreakEnd))
	}
	if len(p.Weekdays) > 0 {
		opts = append(opts, calendar.WithWeekdays(p.Weekdays...))
	}
	return opts
}
