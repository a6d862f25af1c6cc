package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSnapshotNotFound = errors.New("calendar snapshot not found")
)

// Repository persists calendar snapshots and the scheduling event log.
type Repository interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context, calendarID uuid.UUID) (*Snapshot, error)
	ListCalendars(ctx context.Context) ([]uuid.UUID, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
