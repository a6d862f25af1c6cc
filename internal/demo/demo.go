package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

const Doctor = "Dr. Demo"

var reasons = []string{
	"Annual checkup",
	"Chest pain",
	"Follow-up visit",
	"Routine consultation",
	"Persistent cough",
	"Medication review",
	"Back pain",
	"Lab results",
	"Skin rash",
	"High fever",
}

type Options struct {
	// Day is the date slots are generated for. Only its calendar date is used.
	Day           time.Time
	Hours         calendar.WorkingHours
	SlotDuration  time.Duration
	BreakStart    time.Duration
	BreakEnd      time.Duration
	ExtraRequests int
	Seed          int64
}

// DefaultOptions is the classic scenario: tomorrow 09:00-17:00 in 30 minute
// slots with a lunch break from 12:00 to 13:00.
func DefaultOptions(now time.Time) Options {
	return Options{
		Day:          now.AddDate(0, 0, 1),
		Hours:        calendar.WorkingHours{Start: 9 * time.Hour, End: 17 * time.Hour},
		SlotDuration: 30 * time.Minute,
		BreakStart:   12 * time.Hour,
		BreakEnd:     13 * time.Hour,
		Seed:         42,
	}
}

type Result struct {
	CalendarID uuid.UUID
	Slots      int
	Report     appointment.Report
}

// Run creates a fresh calendar, fills it with slots, queues the scenario
// requests and processes them as one batch.
func Run(ctx context.Context, svc *appointment.Service, opts Options) (Result, error) {
	info, err := svc.CreateCalendar(ctx, Doctor)
	if err != nil {
		return Result{}, err
	}

	n, err := svc.GenerateSlots(ctx, info.ID, appointment.GenerateParams{
		StartDate:    opts.Day,
		EndDate:      opts.Day,
		Hours:        opts.Hours,
		SlotDuration: opts.SlotDuration,
		BreakStart:   opts.BreakStart,
		BreakEnd:     opts.BreakEnd,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate demo slots: %w", err)
	}

	requests := Scenario(opts.Day)
	if opts.ExtraRequests > 0 {
		faker := gofakeit.New(uint64(opts.Seed))
		requests = append(requests, RandomRequests(faker, opts, opts.ExtraRequests)...)
	}
	for _, r := range requests {
		if _, err := svc.Submit(ctx, info.ID, r); err != nil {
			return Result{}, fmt.Errorf("submit demo request for %s: %w", r.Patient, err)
		}
	}

	report, err := svc.ProcessPending(ctx, info.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{CalendarID: info.ID, Slots: n, Report: report}, nil
}

// Scenario returns the four fixed requests, in submission order.
func Scenario(day time.Time) []queue.Request {
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
	}
	return []queue.Request{
		{Patient: "John Smith", Contact: "john@email.com", Reason: "Annual checkup", DesiredStart: at(10, 0), Priority: queue.Routine, Flexibility: 60 * time.Minute},
		{Patient: "Jane Doe", Contact: "jane@email.com", Reason: "Severe chest pain", DesiredStart: at(10, 0), Priority: queue.Emergency, Flexibility: 30 * time.Minute},
		{Patient: "Bob Wilson", Contact: "bob@email.com", Reason: "Follow-up on test results", DesiredStart: at(14, 0), Priority: queue.Urgent, Flexibility: 60 * time.Minute},
		{Patient: "Alice Brown", Contact: "alice@email.com", Reason: "Prescription renewal", DesiredStart: at(11, 0), Priority: queue.Routine, Flexibility: 120 * time.Minute},
	}
}

// RandomRequests generates n requests whose desired starts fall on slot
// boundaries inside the working hours. The same faker seed yields the same
// requests.
func RandomRequests(faker *gofakeit.Faker, opts Options, n int) []queue.Request {
	day := time.Date(opts.Day.Year(), opts.Day.Month(), opts.Day.Day(), 0, 0, 0, 0, opts.Day.Location())
	step := opts.SlotDuration
	if step <= 0 {
		step = 30 * time.Minute
	}
	positions := int((opts.Hours.End - opts.Hours.Start) / step)
	if positions < 1 {
		positions = 1
	}

	out := make([]queue.Request, 0, n)
	for i := 0; i < n; i++ {
		offset := opts.Hours.Start + time.Duration(faker.Number(0, positions-1))*step
		out = append(out, queue.Request{
			Patient:      faker.Name(),
			Contact:      faker.Phone(),
			Reason:       faker.RandomString(reasons),
			DesiredStart: day.Add(offset),
			Priority:     queue.Priority(faker.Number(int(queue.Emergency), int(queue.Routine))),
			Flexibility:  time.Duration(faker.Number(0, 4)) * 30 * time.Minute,
		})
	}
	return out
}
