package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
)

// 2026-03-01 is a Sunday, so "tomorrow" is a Monday.
var sunday = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

var defaults = Defaults{
	SlotDuration: 30 * time.Minute,
	WorkStart:    9 * time.Hour,
	WorkEnd:      17 * time.Hour,
	Flexibility:  time.Hour,
	DemoSeed:     42,
}

func runMenu(t *testing.T, lines ...string) (string, *Menu) {
	t.Helper()
	svc := appointment.NewService(nil, nil, zerolog.Nop())
	var out bytes.Buffer
	m := New(svc, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out, defaults)
	m.now = func() time.Time { return sunday }
	require.NoError(t, m.Run(context.Background()))
	return out.String(), m
}

func TestMenu_FullSession(t *testing.T) {
	out, m := runMenu(t,
		"1", "Dr. Who", "30",
		"2", "1", "09:00", "10", "n",
		"3", "Ann Routine", "ann@example.com", "Checkup", "1", "9", "0", "30",
		"3", "Eve Emergency", "", "Chest pain", "3", "9", "0", "0",
		"3", "Uma Urgent", "", "", "2", "9", "0", "0",
		"4",
		"6",
		"7", "1",
		"5",
		"9",
	)

	assert.Contains(t, out, "Calendar created for Dr. Who")
	assert.Contains(t, out, "Generated 2 time slots")
	assert.Contains(t, out, "Pending requests in queue: 3")
	assert.Contains(t, out, "--- Processing 3 requests ---")
	assert.Contains(t, out, "Confirmed: 2")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "  - Eve Emergency: 2026-03-02 09:00 (EMERGENCY)")
	assert.Contains(t, out, "  - Ann Routine: 2026-03-02 09:30 (ROUTINE) moved +30 min")
	assert.Contains(t, out, "  - Uma Urgent: no_available_slot")
	assert.Contains(t, out, "--- Confirmed Appointments (2) ---")
	assert.Contains(t, out, "Appointment for Eve Emergency cancelled")
	assert.Contains(t, out, "--- Available Time Slots (1 total) ---")
	assert.Contains(t, out, "Monday, 2026-03-02:")
	assert.Contains(t, out, "Goodbye!")

	appts, err := m.svc.Appointments(context.Background(), m.calendarID)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "Ann Routine", appts[0].Request.Patient)
}

func TestMenu_RequiresCalendar(t *testing.T) {
	for _, choice := range []string{"2", "3", "4", "5", "6", "7", "10"} {
		out, _ := runMenu(t, choice, "9")
		assert.Contains(t, out, "Please setup a calendar first (option 1)", "option %s", choice)
	}
}

func TestMenu_Demo(t *testing.T) {
	out, m := runMenu(t, "8", "6", "9")

	assert.Contains(t, out, "Created calendar with 14 slots")
	assert.Contains(t, out, "Success rate: 100.0%")
	assert.Contains(t, out, "[EMERGENCY] Jane Doe        -> 10:00")
	assert.Contains(t, out, "[ROUTINE  ] John Smith      -> 09:30")
	assert.Contains(t, out, "--- Confirmed Appointments (4) ---")

	info, err := m.svc.CalendarInfo(context.Background(), m.calendarID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Demo", info.Doctor)
}

func TestMenu_InputHandling(t *testing.T) {
	out, _ := runMenu(t, "abc", "42", "4", "1", "", "", "4", "9")
	assert.Contains(t, out, "Please enter a valid number")
	assert.Contains(t, out, "Invalid choice")
	assert.Contains(t, out, "Calendar created for Dr. Smith")
	assert.Contains(t, out, "No pending requests to process")
}

func TestMenu_EndOfInputExits(t *testing.T) {
	out, _ := runMenu(t, "1", "Dr. Who")
	assert.Contains(t, out, "Default appointment duration (minutes) [30]: ")
	assert.NotContains(t, out, "Goodbye!")
}

func TestMenu_SubmitRejectsEmptyPatient(t *testing.T) {
	out, _ := runMenu(t,
		"1", "", "",
		"3", "", "", "", "1", "10", "0", "60",
		"9",
	)
	assert.Contains(t, out, "Error creating request:")
}

func TestMenu_Reschedule(t *testing.T) {
	out, m := runMenu(t,
		"1", "Dr. Who", "30",
		"2", "1", "09:00", "10", "n",
		"3", "Ann Routine", "", "", "1", "9", "0", "0",
		"4",
		"10", "1", "9", "0", "0",
		"10", "1", "9", "20", "10",
		"10", "0",
		"9",
	)

	assert.Contains(t, out, "--- Reschedule Appointment ---")
	assert.Contains(t, out, "No available slots at the requested time, appointment kept at 2026-03-02 09:00")
	assert.Contains(t, out, "Rescheduled Ann Routine to 2026-03-02 09:30")

	appts, err := m.svc.Appointments(context.Background(), m.calendarID)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, 9, appts[0].Slot.Start.Hour())
	assert.Equal(t, 30, appts[0].Slot.Start.Minute())
}
