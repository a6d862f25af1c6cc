package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (calendar.Slot, error) {
	var s calendar.Slot
	var durationNs int64
	var occupant *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.Start,
		&durationNs,
		&s.Status,
		&occupant,
	)
	if err != nil {
		return calendar.Slot{}, err
	}

	s.Duration = time.Duration(durationNs)
	if occupant != nil {
		s.Occupant = *occupant
	}
	return s, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var priority string
	var flexNs, offsetNs int64
	var slotID *uuid.UUID
	var reason *string

	err := row.Scan(
		&rec.Request.ID,
		&rec.CalendarID,
		&rec.Request.Patient,
		&rec.Request.Contact,
		&rec.Request.Reason,
		&rec.Request.DesiredStart,
		&priority,
		&flexNs,
		&rec.Request.Seq,
		&rec.Request.SubmittedAt,
		&rec.Status,
		&slotID,
		&offsetNs,
		&reason,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	p, err := queue.ParsePriority(priority)
	if err != nil {
		return Record{}, fmt.Errorf("request %s: %w", rec.Request.ID, err)
	}
	rec.Request.Priority = p
	rec.Request.Flexibility = time.Duration(flexNs)
	rec.OffsetApplied = time.Duration(offsetNs)
	if slotID != nil {
		rec.SlotID = *slotID
	}
	if reason != nil {
		rec.Reason = RejectReason(*reason)
	}
	return rec, nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Interface methods

// SaveSnapshot replaces everything stored for the calendar in one transaction.
func (r *PgRepository) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	calID := snap.Calendar.ID

	_, err = tx.Exec(ctx, `
		INSERT INTO calendars (id, doctor, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET doctor = EXCLUDED.doctor,
		    updated_at = now()
	`, calID, snap.Calendar.Doctor)
	if err != nil {
		return fmt.Errorf("upsert calendar: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM requests WHERE calendar_id = $1`, calID); err != nil {
		return fmt.Errorf("clear requests: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM slots WHERE calendar_id = $1`, calID); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}

	batch := &pgx.Batch{}
	for _, s := range snap.Calendar.Slots {
		batch.Queue(`
			INSERT INTO slots (id, calendar_id, start_time, duration_ns, status, occupant)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, calID, s.Start, int64(s.Duration), string(s.Status), nullableUUID(s.Occupant))
	}

	queueRequest := func(rec Record) {
		req := rec.Request
		batch.Queue(`
			INSERT INTO requests (id, calendar_id, patient, contact, reason, desired_start, priority,
			                      flexibility_ns, seq, submitted_at, status, slot_id, offset_ns,
			                      reject_reason, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, now()))
		`, req.ID, calID, req.Patient, req.Contact, req.Reason, req.DesiredStart,
			req.Priority.String(), int64(req.Flexibility), int64(req.Seq), req.SubmittedAt,
			string(rec.Status), nullableUUID(rec.SlotID), int64(rec.OffsetApplied),
			nullableString(string(rec.Reason)), nullableTime(rec.UpdatedAt))
	}
	for _, rec := range snap.Records {
		queueRequest(rec)
	}
	for _, req := range snap.Pending {
		queueRequest(Record{Request: req, Status: StatusPending})
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert snapshot rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (r *PgRepository) LoadSnapshot(ctx context.Context, calendarID uuid.UUID) (*Snapshot, error) {
	snap := &Snapshot{}
	snap.Calendar.ID = calendarID

	err := r.pool.QueryRow(ctx, `
		SELECT doctor FROM calendars WHERE id = $1
	`, calendarID).Scan(&snap.Calendar.Doctor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load calendar: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, duration_ns, status, occupant
		FROM slots
		WHERE calendar_id = $1
		ORDER BY start_time
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		snap.Calendar.Slots = append(snap.Calendar.Slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reqRows, err := r.pool.Query(ctx, `
		SELECT id, calendar_id, patient, contact, reason, desired_start, priority,
		       flexibility_ns, seq, submitted_at, status, slot_id, offset_ns, reject_reason, updated_at
		FROM requests
		WHERE calendar_id = $1
		ORDER BY seq
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	defer reqRows.Close()

	for reqRows.Next() {
		rec, err := scanRecord(reqRows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		if rec.Status == StatusPending {
			snap.Pending = append(snap.Pending, rec.Request)
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	if err := reqRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

func (r *PgRepository) ListCalendars(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM calendars ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, calendar_id, request_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.CalendarID, ev.RequestID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}
