package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

type ReportEntry struct {
	RequestID uuid.UUID      `json:"request_id"`
	Patient   string         `json:"patient"`
	Priority  queue.Priority `json:"priority"`
	Outcome   Outcome        `json:"outcome"`
}

// Report lists outcomes in processing order, which is priority order.
type Report struct {
	CalendarID uuid.UUID     `json:"calendar_id"`
	Entries    []ReportEntry `json:"entries"`
	Elapsed    time.Duration `json:"elapsed"`
}

func (r Report) Total() int {
	return len(r.Entries)
}

func (r Report) Confirmed() []ReportEntry {
	return r.filter(StatusConfirmed)
}

func (r Report) Rejected() []ReportEntry {
	return r.filter(StatusRejected)
}

func (r Report) filter(status RequestStatus) []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if e.Outcome.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// SuccessRate is the confirmed share of the batch as a percentage.
func (r Report) SuccessRate() float64 {
	if len(r.Entries) == 0 {
		return 0
	}
	return float64(len(r.Confirmed())) / float64(len(r.Entries)) * 100
}

// ProcessAll drains q through the scheduler, one request at a time, under a
// single calendar lock. A rejection never stops the batch; an error does,
// leaving the remaining requests queued.
func (s *Service) ProcessAll(ctx context.Context, q *queue.Queue, calendarID uuid.UUID) (Report, error) {
	report := Report{CalendarID: calendarID}
	start := s.now()

	err := s.withCalendar(ctx, calendarID, func(lockCtx context.Context, cal *calendar.Calendar, _ *queue.Queue) error {
		for {
			// The lock may expire or be lost; stop before taking the next request.
			if err := lockCtx.Err(); err != nil {
				return fmt.Errorf("batch interrupted: %w", err)
			}
			req, err := q.Pop()
			if errors.Is(err, queue.ErrEmptyQueue) {
				return nil
			}
			if err != nil {
				return err
			}

			out, err := s.schedule(lockCtx, cal, req)
			if err != nil {
				return fmt.Errorf("schedule request %s: %w", req.ID, err)
			}
			report.Entries = append(report.Entries, ReportEntry{
				RequestID: req.ID,
				Patient:   req.Patient,
				Priority:  req.Priority,
				Outcome:   out,
			})
		}
	})
	report.Elapsed = s.now().Sub(start)
	if err != nil {
		return report, err
	}

	s.log.Info().
		Str("calendar_id", calendarID.String()).
		Int("total", report.Total()).
		Int("confirmed", len(report.Confirmed())).
		Int("rejected", len(report.Rejected())).
		Dur("elapsed", report.Elapsed).
		Msg("batch processed")
	s.logEvent(ctx, calendarID, nil, EventBatchProcessed, map[string]any{
		"total":     report.Total(),
		"confirmed": len(report.Confirmed()),
		"rejected":  len(report.Rejected()),
	})

	return report, nil
}

// ProcessPending drains the calendar's own queue.
func (s *Service) ProcessPending(ctx context.Context, calendarID uuid.UUID) (Report, error) {
	_, q, err := s.lookup(calendarID)
	if err != nil {
		return Report{CalendarID: calendarID}, err
	}
	return s.ProcessAll(ctx, q, calendarID)
}

// ProcessEverything drains the queue of every calendar that has pending
// requests.
func (s *Service) ProcessEverything(ctx context.Context) ([]Report, error) {
	infos, err := s.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, info := range infos {
		if info.Pending == 0 {
			continue
		}
		report, err := s.ProcessPending(ctx, info.ID)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
