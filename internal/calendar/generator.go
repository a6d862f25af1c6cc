package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// slotNamespace seeds the name-based ids of generated slots, so the same
// configuration always yields the same slot ids.
var slotNamespace = uuid.MustParse("6f1c2b1e-6a1d-4c2e-9a57-5d3f1f0c8e21")

// WorkingHours are offsets from midnight, e.g. 9h to 17h.
type WorkingHours struct {
	Start time.Duration
	End   time.Duration
}

func (h WorkingHours) String() string {
	return formatClock(h.Start) + "-" + formatClock(h.End)
}

type generateOptions struct {
	breakStart time.Duration
	breakEnd   time.Duration
	hasBreak   bool
	weekdays   map[time.Weekday]bool
}

type GenerateOption func(*generateOptions)

// WithBreak skips every slot that intersects [start, end) on each day.
func WithBreak(start, end time.Duration) GenerateOption {
	return func(o *generateOptions) {
		o.breakStart = start
		o.breakEnd = end
		o.hasBreak = true
	}
}

// WithWeekdays restricts generation to the given days. No days means every day.
func WithWeekdays(days ...time.Weekday) GenerateOption {
	return func(o *generateOptions) {
		if len(days) == 0 {
			return
		}
		o.weekdays = make(map[time.Weekday]bool, len(days))
		for _, d := range days {
			o.weekdays[d] = true
		}
	}
}

// Generate produces contiguous slots of slotDuration covering the working
// hours of every day from startDate to endDate inclusive, ordered by start.
// Only the calendar dates of startDate and endDate are used; slots are laid
// out in startDate's location.
func Generate(startDate, endDate time.Time, hours WorkingHours, slotDuration time.Duration, opts ...GenerateOption) ([]Slot, error) {
	if slotDuration <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidConfig)
	}
	if hours.Start < 0 || hours.End > 24*time.Hour || hours.Start >= hours.End {
		return nil, fmt.Errorf("%w: working hours %s are not a valid range", ErrInvalidConfig, hours)
	}

	loc := startDate.Location()
	first := dateOf(startDate, loc)
	last := dateOf(endDate.In(loc), loc)
	if first.After(last) {
		return nil, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidConfig,
			first.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasBreak && o.breakStart >= o.breakEnd {
		return nil, fmt.Errorf("%w: break must end after it starts", ErrInvalidConfig)
	}

	var slots []Slot
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if o.weekdays != nil && !o.weekdays[day.Weekday()] {
			continue
		}

		end := atClock(day, hours.End)
		for offset := hours.Start; ; offset += slotDuration {
			start := atClock(day, offset)
			if start.Add(slotDuration).After(end) {
				break
			}
			if o.hasBreak && offset < o.breakEnd && offset+slotDuration > o.breakStart {
				continue
			}
			slots = append(slots, Slot{
				ID:       slotID(start),
				Start:    start,
				Duration: slotDuration,
				Status:   SlotFree,
			})
		}
	}

	return slots, nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q must be HH:MM", ErrInvalidConfig, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseWeekday accepts full or three letter English day names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: unknown weekday %q", ErrInvalidConfig, s)
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func atClock(day time.Time, offset time.Duration) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, int(offset), day.Location())
}

func slotID(start time.Time) uuid.UUID {
	return uuid.NewSHA1(slotNamespace, []byte(start.UTC().Format(time.RFC3339Nano)))
}
