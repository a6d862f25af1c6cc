package calendar

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func newTestCalendar(t *testing.T, starts ...time.Time) *Calendar {
	t.Helper()
	c, err := New(uuid.New(), "Dr. Test")
	require.NoError(t, err)
	for _, s := range starts {
		require.NoError(t, c.AddSlot(Slot{Start: s, Duration: 30 * time.Minute}))
	}
	return c
}

func TestNew_RequiresDoctor(t *testing.T) {
	_, err := New(uuid.New(), "  ")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAddSlot_RejectsOverlap(t *testing.T) {
	c := newTestCalendar(t, at(9, 0), at(10, 0))

	tests := []struct {
		name  string
		start time.Time
		dur   time.Duration
		want  error
	}{
		{"same start", at(9, 0), 30 * time.Minute, ErrOverlap},
		{"tail of previous", at(9, 15), 30 * time.Minute, ErrOverlap},
		{"head of next", at(9, 45), 30 * time.Minute, ErrOverlap},
		{"covers both", at(8, 0), 4 * time.Hour, ErrOverlap},
		{"zero duration", at(12, 0), 0, ErrInvalidConfig},
		{"gap fits", at(9, 30), 30 * time.Minute, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.AddSlot(Slot{Start: tt.start, Duration: tt.dur})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 3, c.Len())
}

func TestAddSlot_DuplicateID(t *testing.T) {
	c := newTestCalendar(t)
	id := uuid.New()
	require.NoError(t, c.AddSlot(Slot{ID: id, Start: at(9, 0), Duration: time.Hour}))
	err := c.AddSlot(Slot{ID: id, Start: at(11, 0), Duration: time.Hour})
	assert.ErrorIs(t, err, ErrDuplicateSlot)
}

func TestAddSlot_NeverOverlapsAfterRandomInserts(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := newTestCalendar(t)

	for i := 0; i < 500; i++ {
		start := day.Add(time.Duration(rng.Intn(24*60)) * time.Minute)
		dur := time.Duration(5+rng.Intn(90)) * time.Minute
		_ = c.AddSlot(Slot{Start: start, Duration: dur})
	}

	slots := c.Slots()
	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		assert.False(t, slots[i-1].Overlaps(slots[i]), "slots %d and %d overlap", i-1, i)
		assert.False(t, slots[i].Start.Before(slots[i-1].End()))
	}
}

func TestFindSlotAt(t *testing.T) {
	c := newTestCalendar(t, at(9, 0), at(9, 30), at(11, 0))

	s, ok := c.FindSlotAt(at(9, 30))
	require.True(t, ok)
	assert.Equal(t, at(9, 30), s.Start)

	s, ok = c.FindSlotAt(at(9, 10))
	require.True(t, ok)
	assert.Equal(t, at(9, 0), s.Start)

	_, ok = c.FindSlotAt(at(10, 0))
	assert.False(t, ok)

	_, ok = c.FindSlotAt(at(8, 59))
	assert.False(t, ok)
}

func TestSlotsInRange_IsBoundedAndRestartable(t *testing.T) {
	c := newTestCalendar(t, at(9, 0), at(9, 30), at(10, 0), at(10, 30), at(11, 0))

	seq := c.SlotsInRange(at(9, 30), at(10, 30))

	var first, second []time.Time
	for s := range seq {
		first = append(first, s.Start)
	}
	for s := range seq {
		second = append(second, s.Start)
	}

	assert.Equal(t, []time.Time{at(9, 30), at(10, 0), at(10, 30)}, first)
	assert.Equal(t, first, second)

	var count int
	for range c.SlotsInRange(at(9, 0), at(12, 0)) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestMarkConfirmedAndFree(t *testing.T) {
	c := newTestCalendar(t, at(9, 0))
	slot, _ := c.FindSlotAt(at(9, 0))
	occupant := uuid.New()

	require.NoError(t, c.MarkConfirmed(slot.ID, occupant))
	got, err := c.Slot(slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotConfirmed, got.Status)
	assert.Equal(t, occupant, got.Occupant)

	assert.ErrorIs(t, c.MarkConfirmed(slot.ID, uuid.New()), ErrSlotNotFree)
	assert.ErrorIs(t, c.MarkConfirmed(uuid.New(), occupant), ErrSlotNotFound)

	require.NoError(t, c.MarkFree(slot.ID))
	got, _ = c.Slot(slot.ID)
	assert.True(t, got.IsFree())
	assert.Equal(t, uuid.Nil, got.Occupant)

	assert.ErrorIs(t, c.MarkFree(slot.ID), ErrSlotAlreadyFree)
	assert.ErrorIs(t, c.MarkFree(uuid.New()), ErrSlotNotFound)
}

func TestStepTracksShortestSlot(t *testing.T) {
	c := newTestCalendar(t)
	assert.Zero(t, c.Step())
	require.NoError(t, c.AddSlot(Slot{Start: at(9, 0), Duration: time.Hour}))
	require.NoError(t, c.AddSlot(Slot{Start: at(10, 0), Duration: 15 * time.Minute}))
	assert.Equal(t, 15*time.Minute, c.Step())
}

func TestSnapshotRestore(t *testing.T) {
	c := newTestCalendar(t, at(9, 0), at(9, 30))
	slot, _ := c.FindSlotAt(at(9, 30))
	occupant := uuid.New()
	require.NoError(t, c.MarkConfirmed(slot.ID, occupant))

	restored, err := Restore(c.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, c.ID, restored.ID)
	assert.Equal(t, c.Slots(), restored.Slots())
	assert.Len(t, restored.FreeSlots(), 1)
}

func TestRestore_RejectsBrokenOccupancy(t *testing.T) {
	snap := Snapshot{
		ID:     uuid.New(),
		Doctor: "Dr. Test",
		Slots:  []Slot{{ID: uuid.New(), Start: at(9, 0), Duration: time.Hour, Status: SlotConfirmed}},
	}
	_, err := Restore(snap)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
