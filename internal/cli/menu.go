package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/demo"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

const maxSlotsShown = 20

// Defaults seed the values offered at the prompts.
type Defaults struct {
	SlotDuration time.Duration
	WorkStart    time.Duration
	WorkEnd      time.Duration
	Flexibility  time.Duration
	Days         int
	DemoSeed     int64
	DemoRequests int
}

// Menu is the interactive front end. It works on one current calendar at a
// time; option 1 and the demo replace it.
type Menu struct {
	svc      *appointment.Service
	in       *bufio.Scanner
	out      io.Writer
	now      func() time.Time
	defaults Defaults

	calendarID   uuid.UUID
	slotDuration time.Duration
}

func New(svc *appointment.Service, in io.Reader, out io.Writer, defaults Defaults) *Menu {
	if defaults.Days <= 0 {
		defaults.Days = 5
	}
	return &Menu{
		svc:      svc,
		in:       bufio.NewScanner(in),
		out:      out,
		now:      time.Now,
		defaults: defaults,
	}
}

// Run shows the menu until the user exits or the input ends.
func (m *Menu) Run(ctx context.Context) error {
	m.printf("\n%s\n       APPOINTMENT SCHEDULING SYSTEM\n%s\n", rule("=", 60), rule("=", 60))

	for {
		m.printMenu()
		choice, err := m.promptInt("Enter choice", 8)
		if err != nil {
			return ignoreEOF(err)
		}

		switch choice {
		case 1:
			err = m.setupCalendar(ctx)
		case 2:
			err = m.generateSlots(ctx)
		case 3:
			err = m.submitRequest(ctx)
		case 4:
			err = m.processRequests(ctx)
		case 5:
			err = m.viewAvailableSlots(ctx)
		case 6:
			err = m.viewAppointments(ctx)
		case 7:
			err = m.cancelAppointment(ctx)
		case 8:
			err = m.runDemo(ctx)
		case 9:
			m.printf("\nGoodbye!\n")
			return nil
		case 10:
			err = m.rescheduleAppointment(ctx)
		default:
			m.printf("Invalid choice\n")
		}
		if err != nil {
			return ignoreEOF(err)
		}
	}
}

func (m *Menu) printMenu() {
	m.printf("\n--- Main Menu ---\n")
	for i, item := range []string{
		"Setup doctor calendar",
		"Generate time slots",
		"Submit appointment request",
		"Process all requests",
		"View available slots",
		"View confirmed appointments",
		"Cancel appointment",
		"Run demo",
		"Exit",
		"Reschedule appointment",
	} {
		m.printf("%d. %s\n", i+1, item)
	}
	m.printf("%s\n", rule("-", 20))
}

func (m *Menu) requireCalendar() bool {
	if m.calendarID == uuid.Nil {
		m.printf("\nPlease setup a calendar first (option 1)\n")
		return false
	}
	return true
}

func (m *Menu) setupCalendar(ctx context.Context) error {
	m.printf("\n--- Setup Doctor Calendar ---\n")

	doctor, err := m.prompt("Doctor name", "Dr. Smith")
	if err != nil {
		return err
	}
	minutes, err := m.promptInt("Default appointment duration (minutes)", int(m.defaults.SlotDuration/time.Minute))
	if err != nil {
		return err
	}
	if minutes <= 0 {
		m.printf("Error creating calendar: duration must be positive\n")
		return nil
	}

	info, err := m.svc.CreateCalendar(ctx, doctor)
	if err != nil {
		m.printf("Error creating calendar: %v\n", err)
		return nil
	}
	m.calendarID = info.ID
	m.slotDuration = time.Duration(minutes) * time.Minute

	m.printf("\nCalendar created for %s\n", info.Doctor)
	m.printf("Default slot duration: %d minutes\n", minutes)
	return nil
}

// generateSlots lays out weekday slots starting tomorrow.
func (m *Menu) generateSlots(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	m.printf("\n--- Generate Time Slots ---\n")

	days, err := m.promptInt("Number of days", m.defaults.Days)
	if err != nil {
		return err
	}
	start, err := m.promptClock("Working hours start", m.defaults.WorkStart)
	if err != nil {
		return err
	}
	end, err := m.promptClock("Working hours end", m.defaults.WorkEnd)
	if err != nil {
		return err
	}
	lunch, err := m.prompt("Include lunch break? (y/n)", "y")
	if err != nil {
		return err
	}
	if days <= 0 {
		m.printf("Error generating slots: number of days must be positive\n")
		return nil
	}

	tomorrow := m.now().AddDate(0, 0, 1)
	params := appointment.GenerateParams{
		StartDate:    tomorrow,
		EndDate:      tomorrow.AddDate(0, 0, days-1),
		Hours:        calendar.WorkingHours{Start: start, End: end},
		SlotDuration: m.slotDuration,
		Weekdays:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
	if strings.EqualFold(lunch, "y") {
		m.printf("Lunch break: 12:00 - 13:00\n")
		params.BreakStart, params.BreakEnd = 12*time.Hour, 13*time.Hour
	}

	n, err := m.svc.GenerateSlots(ctx, m.calendarID, params)
	if err != nil {
		m.printf("Error generating slots: %v\n", err)
		return nil
	}
	m.printf("\nGenerated %d time slots\n", n)
	return nil
}

func (m *Menu) submitRequest(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	m.printf("\n--- Submit Appointment Request ---\n")

	patient, err := m.prompt("Patient name", "")
	if err != nil {
		return err
	}
	contact, err := m.prompt("Patient contact (phone/email)", "")
	if err != nil {
		return err
	}
	reason, err := m.prompt("Reason for appointment", "")
	if err != nil {
		return err
	}

	m.printf("\nPriority levels:\n  1. Routine\n  2. Urgent\n  3. Emergency\n")
	choice, err := m.promptInt("Select priority", 1)
	if err != nil {
		return err
	}
	priority, err := queue.ParsePriority(strconv.Itoa(choice))
	if err != nil {
		priority = queue.Routine
	}

	m.printf("\nPreferred time (tomorrow at 10:00 as default)\n")
	hour, err := m.promptInt("Hour (0-23)", 10)
	if err != nil {
		return err
	}
	minute, err := m.promptInt("Minute (0-59)", 0)
	if err != nil {
		return err
	}
	flex, err := m.promptInt("Time flexibility (minutes)", int(m.defaults.Flexibility/time.Minute))
	if err != nil {
		return err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		m.printf("Error creating request: %02d:%02d is not a valid time\n", hour, minute)
		return nil
	}

	tomorrow := m.now().AddDate(0, 0, 1)
	desired := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hour, minute, 0, 0, tomorrow.Location())

	stored, err := m.svc.Submit(ctx, m.calendarID, queue.Request{
		Patient:      patient,
		Contact:      contact,
		Reason:       reason,
		DesiredStart: desired,
		Priority:     priority,
		Flexibility:  time.Duration(flex) * time.Minute,
	})
	if err != nil {
		m.printf("Error creating request: %v\n", err)
		return nil
	}

	pending, err := m.svc.PendingCount(ctx, m.calendarID)
	if err != nil {
		return err
	}
	m.printf("\nRequest submitted for %s\n", stored.Patient)
	m.printf("Priority: %s\n", stored.Priority)
	m.printf("Preferred time: %s\n", stored.DesiredStart.Format("2006-01-02 15:04"))
	m.printf("Pending requests in queue: %d\n", pending)
	return nil
}

func (m *Menu) processRequests(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	pending, err := m.svc.PendingCount(ctx, m.calendarID)
	if err != nil {
		return err
	}
	if pending == 0 {
		m.printf("\nNo pending requests to process\n")
		return nil
	}

	m.printf("\n--- Processing %d requests ---\n", pending)
	report, err := m.svc.ProcessPending(ctx, m.calendarID)
	if err != nil {
		m.printf("Error processing requests: %v\n", err)
		return nil
	}
	PrintReport(m.out, report)
	return nil
}

func (m *Menu) viewAvailableSlots(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	slots, err := m.svc.AvailableSlots(ctx, m.calendarID, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		m.printf("\nNo available time slots\n")
		return nil
	}

	m.printf("\n--- Available Time Slots (%d total) ---\n", len(slots))
	var day string
	for i, s := range slots {
		if i >= maxSlotsShown {
			m.printf("\n... and %d more slots\n", len(slots)-maxSlotsShown)
			break
		}
		if d := s.Start.Format("Monday, 2006-01-02"); d != day {
			day = d
			m.printf("\n%s:\n", day)
		}
		m.printf("  %s - %s\n", s.Start.Format("15:04"), s.End().Format("15:04"))
	}
	return nil
}

func (m *Menu) viewAppointments(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	appts, err := m.svc.Appointments(ctx, m.calendarID)
	if err != nil {
		return err
	}
	if len(appts) == 0 {
		m.printf("\nNo confirmed appointments\n")
		return nil
	}

	m.printf("\n--- Confirmed Appointments (%d) ---\n", len(appts))
	var day string
	for _, a := range appts {
		if d := a.Slot.Start.Format("Monday, 2006-01-02"); d != day {
			day = d
			m.printf("\n%s:\n", day)
		}
		m.printf("  %s - %s (%s) - %s\n", a.Slot.Start.Format("15:04"), a.Request.Patient, a.Request.Priority, a.Request.Reason)
		m.printf("    ID: %s...\n", a.Request.ID.String()[:8])
	}
	return nil
}

func (m *Menu) cancelAppointment(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	appts, err := m.svc.Appointments(ctx, m.calendarID)
	if err != nil {
		return err
	}
	if len(appts) == 0 {
		m.printf("\nNo appointments to cancel\n")
		return nil
	}

	m.printf("\n--- Cancel Appointment ---\n\nCurrent appointments:\n")
	for i, a := range appts {
		m.printf("  %d. %s - %s\n", i+1, a.Request.Patient, a.Slot.Start.Format("2006-01-02 15:04"))
	}

	choice, err := m.promptInt("Select appointment to cancel (0 to go back)", 0)
	if err != nil {
		return err
	}
	if choice <= 0 || choice > len(appts) {
		return nil
	}

	target := appts[choice-1]
	if err := m.svc.Cancel(ctx, target.Request.ID, m.calendarID); err != nil {
		if errors.Is(err, appointment.ErrCalendarBusy) {
			m.printf("\nCalendar is busy, please retry\n")
			return nil
		}
		m.printf("\nFailed to cancel appointment: %v\n", err)
		return nil
	}
	m.printf("\nAppointment for %s cancelled\n", target.Request.Patient)
	m.printf("Time slot is now available again\n")
	return nil
}

func (m *Menu) rescheduleAppointment(ctx context.Context) error {
	if !m.requireCalendar() {
		return nil
	}
	appts, err := m.svc.Appointments(ctx, m.calendarID)
	if err != nil {
		return err
	}
	if len(appts) == 0 {
		m.printf("\nNo appointments to reschedule\n")
		return nil
	}

	m.printf("\n--- Reschedule Appointment ---\n\nCurrent appointments:\n")
	for i, a := range appts {
		m.printf("  %d. %s - %s\n", i+1, a.Request.Patient, a.Slot.Start.Format("2006-01-02 15:04"))
	}

	choice, err := m.promptInt("Select appointment to reschedule (0 to go back)", 0)
	if err != nil {
		return err
	}
	if choice <= 0 || choice > len(appts) {
		return nil
	}
	target := appts[choice-1]

	start := target.Slot.Start
	hour, err := m.promptInt("New hour (0-23)", start.Hour())
	if err != nil {
		return err
	}
	minute, err := m.promptInt("New minute (0-59)", start.Minute())
	if err != nil {
		return err
	}
	flex, err := m.promptInt("Time flexibility (minutes)", int(m.defaults.Flexibility/time.Minute))
	if err != nil {
		return err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		m.printf("\nFailed to reschedule: %02d:%02d is not a valid time\n", hour, minute)
		return nil
	}

	desired := time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, start.Location())
	out, err := m.svc.Reschedule(ctx, target.Request.ID, m.calendarID, desired, time.Duration(flex)*time.Minute)
	if err != nil {
		if errors.Is(err, appointment.ErrCalendarBusy) {
			m.printf("\nCalendar is busy, please retry\n")
			return nil
		}
		m.printf("\nFailed to reschedule: %v\n", err)
		return nil
	}
	if !out.Confirmed() {
		m.printf("\nNo available slots at the requested time, appointment kept at %s\n", start.Format("2006-01-02 15:04"))
		return nil
	}
	m.printf("\nRescheduled %s to %s\n", target.Request.Patient, out.SlotStart.Format("2006-01-02 15:04"))
	return nil
}

func (m *Menu) runDemo(ctx context.Context) error {
	m.printf("\n--- Running Demo ---\n")

	opts := demo.DefaultOptions(m.now())
	opts.Seed = m.defaults.DemoSeed
	opts.ExtraRequests = m.defaults.DemoRequests

	res, err := RunDemo(ctx, m.svc, m.out, opts)
	if err != nil {
		m.printf("Error running demo: %v\n", err)
		return nil
	}
	m.calendarID = res.CalendarID
	m.slotDuration = opts.SlotDuration
	return nil
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

// prompt reads one line. An empty line yields def; end of input yields io.EOF.
func (m *Menu) prompt(label, def string) (string, error) {
	if def != "" {
		m.printf("%s [%s]: ", label, def)
	} else {
		m.printf("%s: ", label)
	}
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(m.in.Text())
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (m *Menu) promptInt(label string, def int) (int, error) {
	for {
		raw, err := m.prompt(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(raw); err == nil {
			return n, nil
		}
		m.printf("Please enter a valid number\n")
	}
}

// promptClock accepts HH:MM or a bare hour.
func (m *Menu) promptClock(label string, def time.Duration) (time.Duration, error) {
	defText := fmt.Sprintf("%02d:%02d", int(def/time.Hour), int(def%time.Hour/time.Minute))
	for {
		raw, err := m.prompt(label, defText)
		if err != nil {
			return 0, err
		}
		if h, err := strconv.Atoi(raw); err == nil && h >= 0 && h <= 24 {
			return time.Duration(h) * time.Hour, nil
		}
		if d, err := calendar.ParseClock(raw); err == nil {
			return d, nil
		}
		m.printf("Please enter a time as HH:MM\n")
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func rule(s string, n int) string {
	return strings.Repeat(s, n)
}
