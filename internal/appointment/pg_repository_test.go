package appointment

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/priority-appointment-scheduling/internal/db"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

// newPgRepository connects to POSTGRES_DSN and skips the test when it is unset.
func newPgRepository(t *testing.T) *PgRepository {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	pool, err := db.ConnectPostgres(context.Background(), dsn, true)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPgRepository(pool)
}

func TestPgRepository_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newPgRepository(t)
	svc := NewService(repo, nil, zerolog.Nop())
	calID := newCalendarWithSlots(t, svc, at(9, 0), at(9, 30))

	confirmed, err := svc.Schedule(ctx, req("booked", queue.Emergency, at(9, 0), 0), calID)
	require.NoError(t, err)
	rejected, err := svc.Schedule(ctx, req("unlucky", queue.Routine, at(13, 0), 0), calID)
	require.NoError(t, err)
	waiting, err := svc.Submit(ctx, calID, req("waiting", queue.Urgent, at(9, 30), 15*time.Minute))
	require.NoError(t, err)

	require.NoError(t, svc.Save(ctx, calID))
	// Saving twice replaces rather than duplicates rows.
	require.NoError(t, svc.Save(ctx, calID))

	snap, err := repo.LoadSnapshot(ctx, calID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Test", snap.Calendar.Doctor)
	require.Len(t, snap.Calendar.Slots, 2)
	require.Len(t, snap.Records, 2)
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, waiting.ID, snap.Pending[0].ID)
	assert.Equal(t, queue.Urgent, snap.Pending[0].Priority)
	assert.Equal(t, 15*time.Minute, snap.Pending[0].Flexibility)

	restored := NewService(repo, nil, zerolog.Nop())
	require.NoError(t, restored.Load(ctx, calID))

	rec, err := restored.Record(confirmed.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, rec.Status)
	rec, err = restored.Record(rejected.RequestID)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoAvailableSlot, rec.Reason)
	assertBijection(t, restored, calID)

	ids, err := repo.ListCalendars(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, calID)
}

func TestPgRepository_MissingSnapshot(t *testing.T) {
	repo := newPgRepository(t)
	_, err := repo.LoadSnapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
