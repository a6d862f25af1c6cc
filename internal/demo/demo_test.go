package demo

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

var now = time.Date(2026, 5, 11, 15, 4, 0, 0, time.UTC)

func TestRun_FixedScenario(t *testing.T) {
	svc := appointment.NewService(nil, nil, zerolog.Nop())

	res, err := Run(context.Background(), svc, DefaultOptions(now))
	require.NoError(t, err)
	assert.Equal(t, 14, res.Slots)

	tomorrow := func(h, m int) time.Time { return time.Date(2026, 5, 12, h, m, 0, 0, time.UTC) }

	got := make(map[string]appointment.Outcome)
	var order []string
	for _, e := range res.Report.Entries {
		got[e.Patient] = e.Outcome
		order = append(order, e.Patient)
	}
	assert.Equal(t, []string{"Jane Doe", "Bob Wilson", "John Smith", "Alice Brown"}, order)

	assert.Equal(t, tomorrow(10, 0), got["Jane Doe"].SlotStart)
	assert.Equal(t, tomorrow(14, 0), got["Bob Wilson"].SlotStart)
	assert.Equal(t, tomorrow(9, 30), got["John Smith"].SlotStart)
	assert.Equal(t, -30*time.Minute, got["John Smith"].OffsetApplied)
	assert.Equal(t, tomorrow(11, 0), got["Alice Brown"].SlotStart)
	assert.InDelta(t, 100.0, res.Report.SuccessRate(), 0.001)

	info, err := svc.CalendarInfo(context.Background(), res.CalendarID)
	require.NoError(t, err)
	assert.Equal(t, Doctor, info.Doctor)
	assert.Equal(t, 10, info.Free)
	assert.Zero(t, info.Pending)
}

func TestRun_WithRandomRequests(t *testing.T) {
	svc := appointment.NewService(nil, nil, zerolog.Nop())
	opts := DefaultOptions(now)
	opts.ExtraRequests = 20

	res, err := Run(context.Background(), svc, opts)
	require.NoError(t, err)
	assert.Equal(t, 24, res.Report.Total())
	assert.LessOrEqual(t, len(res.Report.Confirmed()), res.Slots)

	for i := 1; i < len(res.Report.Entries); i++ {
		assert.LessOrEqual(t, res.Report.Entries[i-1].Priority, res.Report.Entries[i].Priority)
	}
}

func TestRandomRequests_Reproducible(t *testing.T) {
	opts := DefaultOptions(now)

	a := RandomRequests(gofakeit.New(7), opts, 15)
	b := RandomRequests(gofakeit.New(7), opts, 15)
	require.Len(t, a, 15)
	assert.Equal(t, a, b)

	for _, r := range a {
		require.NoError(t, r.Validate())
		offset := r.DesiredStart.Sub(time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC))
		assert.GreaterOrEqual(t, offset, opts.Hours.Start)
		assert.Less(t, offset, opts.Hours.End)
		assert.Zero(t, offset%opts.SlotDuration)
		assert.True(t, r.Priority.Valid())
		assert.LessOrEqual(t, r.Flexibility, 2*time.Hour)
	}
}

func TestScenario_Order(t *testing.T) {
	reqs := Scenario(now)
	require.Len(t, reqs, 4)
	assert.Equal(t, queue.Routine, reqs[0].Priority)
	assert.Equal(t, queue.Emergency, reqs[1].Priority)
	assert.Equal(t, 10, reqs[1].DesiredStart.Hour())
}
