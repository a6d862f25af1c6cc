package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyQueue      = errors.New("request queue is empty")
	ErrRequestNotFound = errors.New("pending request not found")
	ErrInvalidRequest  = errors.New("invalid appointment request")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Priority orders requests; a lower value is dequeued first.
type Priority int

const (
	Emergency Priority = iota
	Urgent
	Routine
)

func (p Priority) String() string {
	switch p {
	case Emergency:
		return "EMERGENCY"
	case Urgent:
		return "URGENT"
	case Routine:
		return "ROUTINE"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

func (p Priority) Valid() bool {
	return p >= Emergency && p <= Routine
}

// ParsePriority accepts a priority name in any case, or the menu numbers
// 1 (routine), 2 (urgent) and 3 (emergency).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emergency", "3":
		return Emergency, nil
	case "urgent", "2":
		return Urgent, nil
	case "routine", "1":
		return Routine, nil
	default:
		return Routine, fmt.Errorf("%w: %q (valid: routine, urgent, emergency)", ErrInvalidPriority, s)
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}
	return []byte(strings.ToLower(p.String())), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Request is a patient's wish for a slot. Seq is assigned by the queue on
// submission and decides order among equal priorities.
type Request struct {
	ID           uuid.UUID     `json:"id"`
	Patient      string        `json:"patient"`
	Contact      string        `json:"contact,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	DesiredStart time.Time     `json:"desired_start"`
	Priority     Priority      `json:"priority"`
	Flexibility  time.Duration `json:"flexibility"`
	Seq          uint64        `json:"seq"`
	SubmittedAt  time.Time     `json:"submitted_at"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Patient) == "" {
		return fmt.Errorf("%w: patient name cannot be empty", ErrInvalidRequest)
	}
	if r.Flexibility < 0 {
		return fmt.Errorf("%w: flexibility cannot be negative", ErrInvalidRequest)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrInvalidPriority)
	}
	if r.DesiredStart.IsZero() {
		return fmt.Errorf("%w: desired start is required", ErrInvalidRequest)
	}
	return nil
}

// EarliestAcceptable and LatestAcceptable bound the flexibility window.
func (r Request) EarliestAcceptable() time.Time {
	return r.DesiredStart.Add(-r.Flexibility)
}

func (r Request) LatestAcceptable() time.Time {
	return r.DesiredStart.Add(r.Flexibility)
}

// Less is the queue order: priority first, then submission sequence.
func Less(a, b Request) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Seq < b.Seq
}
