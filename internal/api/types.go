package api

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
)

type CreateCalendarRequest struct {
	Doctor string `json:"doctor"`
}

type CalendarResponse struct {
	ID          uuid.UUID `json:"id"`
	Doctor      string    `json:"doctor"`
	Slots       int       `json:"slots"`
	Free        int       `json:"free"`
	Pending     int       `json:"pending"`
	StepMinutes int       `json:"step_minutes"`
}

// GenerateSlotsRequest uses YYYY-MM-DD dates and HH:MM clock times.
type GenerateSlotsRequest struct {
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	WorkStart   string   `json:"work_start"`
	WorkEnd     string   `json:"work_end"`
	SlotMinutes int      `json:"slot_minutes"`
	BreakStart  string   `json:"break_start,omitempty"`
	BreakEnd    string   `json:"break_end,omitempty"`
	Weekdays    []string `json:"weekdays,omitempty"`
}

type GenerateSlotsResponse struct {
	Generated int `json:"generated"`
}

type SlotResponse struct {
	ID              uuid.UUID  `json:"id"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Occupant        *uuid.UUID `json:"occupant,omitempty"`
}

type SubmitRequest struct {
	Patient            string    `json:"patient"`
	Contact            string    `json:"contact"`
	Reason             string    `json:"reason"`
	DesiredStart       time.Time `json:"desired_start"`
	Priority           string    `json:"priority"`
	FlexibilityMinutes int       `json:"flexibility_minutes"`
}

type RequestResponse struct {
	ID                 uuid.UUID  `json:"id"`
	CalendarID         uuid.UUID  `json:"calendar_id"`
	Patient            string     `json:"patient"`
	Priority           string     `json:"priority"`
	DesiredStart       time.Time  `json:"desired_start"`
	FlexibilityMinutes int        `json:"flexibility_minutes"`
	Seq                uint64     `json:"seq"`
	Status             string     `json:"status"`
	SlotID             *uuid.UUID `json:"slot_id,omitempty"`
	OffsetMinutes      int        `json:"offset_minutes"`
	Reason             string     `json:"reason,omitempty"`
}

// RescheduleRequest moves a confirmed appointment. The appointment keeps
// its slot when nothing fits.
type RescheduleRequest struct {
	DesiredStart       time.Time `json:"desired_start"`
	FlexibilityMinutes int       `json:"flexibility_minutes"`
}

type OutcomeResponse struct {
	RequestID     uuid.UUID  `json:"request_id"`
	Patient       string     `json:"patient"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	SlotID        *uuid.UUID `json:"slot_id,omitempty"`
	SlotStart     *time.Time `json:"slot_start,omitempty"`
	OffsetMinutes int        `json:"offset_minutes"`
	Reason        string     `json:"reason,omitempty"`
}

type ReportResponse struct {
	CalendarID  uuid.UUID         `json:"calendar_id"`
	Total       int               `json:"total"`
	Confirmed   int               `json:"confirmed"`
	Rejected    int               `json:"rejected"`
	SuccessRate float64           `json:"success_rate"`
	ElapsedMS   int64             `json:"elapsed_ms"`
	Outcomes    []OutcomeResponse `json:"outcomes"`
}

type AppointmentResponse struct {
	RequestID     uuid.UUID `json:"request_id"`
	Patient       string    `json:"patient"`
	Contact       string    `json:"contact,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Priority      string    `json:"priority"`
	SlotID        uuid.UUID `json:"slot_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	OffsetMinutes int       `json:"offset_minutes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toCalendarResponse(info appointment.CalendarInfo) CalendarResponse {
	return CalendarResponse{
		ID:          info.ID,
		Doctor:      info.Doctor,
		Slots:       info.Slots,
		Free:        info.Free,
		Pending:     info.Pending,
		StepMinutes: int(info.Step / time.Minute),
	}
}

func toSlotResponse(s calendar.Slot) SlotResponse {
	resp := SlotResponse{
		ID:              s.ID,
		Start:           s.Start,
		End:             s.End(),
		DurationMinutes: int(s.Duration / time.Minute),
		Status:          string(s.Status),
	}
	if s.Occupant != uuid.Nil {
		occupant := s.Occupant
		resp.Occupant = &occupant
	}
	return resp
}

func toRequestResponse(rec appointment.Record) RequestResponse {
	resp := RequestResponse{
		ID:                 rec.Request.ID,
		CalendarID:         rec.CalendarID,
		Patient:            rec.Request.Patient,
		Priority:           priorityName(rec.Request.Priority),
		DesiredStart:       rec.Request.DesiredStart,
		FlexibilityMinutes: int(rec.Request.Flexibility / time.Minute),
		Seq:                rec.Request.Seq,
		Status:             string(rec.Status),
		OffsetMinutes:      int(rec.OffsetApplied / time.Minute),
		Reason:             string(rec.Reason),
	}
	if rec.SlotID != uuid.Nil {
		slotID := rec.SlotID
		resp.SlotID = &slotID
	}
	return resp
}

func toReportResponse(r appointment.Report) ReportResponse {
	resp := ReportResponse{
		CalendarID:  r.CalendarID,
		Total:       r.Total(),
		Confirmed:   len(r.Confirmed()),
		Rejected:    len(r.Rejected()),
		SuccessRate: r.SuccessRate(),
		ElapsedMS:   r.Elapsed.Milliseconds(),
		Outcomes:    make([]OutcomeResponse, 0, len(r.Entries)),
	}
	for _, e := range r.Entries {
		resp.Outcomes = append(resp.Outcomes, toOutcomeResponse(e.Patient, e.Priority, e.Outcome))
	}
	return resp
}

func toOutcomeResponse(patient string, p queue.Priority, o appointment.Outcome) OutcomeResponse {
	out := OutcomeResponse{
		RequestID:     o.RequestID,
		Patient:       patient,
		Priority:      priorityName(p),
		Status:        string(o.Status),
		OffsetMinutes: int(o.OffsetApplied / time.Minute),
		Reason:        string(o.Reason),
	}
	if o.Confirmed() {
		slotID, start := o.SlotID, o.SlotStart
		out.SlotID = &slotID
		out.SlotStart = &start
	}
	return out
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		RequestID:     a.Request.ID,
		Patient:       a.Request.Patient,
		Contact:       a.Request.Contact,
		Reason:        a.Request.Reason,
		Priority:      priorityName(a.Request.Priority),
		SlotID:        a.Slot.ID,
		Start:         a.Slot.Start,
		End:           a.Slot.End(),
		OffsetMinutes: int(a.OffsetApplied / time.Minute),
	}
}

func toQueueRequest(req SubmitRequest) (queue.Request, error) {
	priority, err := queue.ParsePriority(req.Priority)
	if err != nil {
		return queue.Request{}, err
	}
	return queue.Request{
		Patient:      req.Patient,
		Contact:      req.Contact,
		Reason:       req.Reason,
		DesiredStart: req.DesiredStart,
		Priority:     priority,
		Flexibility:  time.Duration(req.FlexibilityMinutes) * time.Minute,
	}, nil
}

func priorityName(p queue.Priority) string {
	return strings.ToLower(p.String())
}
