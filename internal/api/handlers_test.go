package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := appointment.NewService(nil, nil, zerolog.Nop())
	return &testServer{
		t:       t,
		handler: NewRouter(RouterConfig{Service: svc, Log: zerolog.Nop(), Env: "test", Version: "dev"}),
	}
}

func (s *testServer) do(method, path string, body any, out any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

// setupCalendar creates a calendar with 09:00 and 09:30 slots on 2026-03-02.
func (s *testServer) setupCalendar() uuid.UUID {
	s.t.Helper()
	var cal CalendarResponse
	rec := s.do(http.MethodPost, "/calendars", CreateCalendarRequest{Doctor: "Dr. House"}, &cal)
	require.Equal(s.t, http.StatusCreated, rec.Code)

	var gen GenerateSlotsResponse
	rec = s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/slots/generate", cal.ID), GenerateSlotsRequest{
		StartDate:   "2026-03-02",
		WorkStart:   "09:00",
		WorkEnd:     "10:00",
		SlotMinutes: 30,
	}, &gen)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(s.t, 2, gen.Generated)
	return cal.ID
}

func nineOClock() time.Time {
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func TestAPI_SubmitProcessCancel(t *testing.T) {
	s := newTestServer(t)
	calID := s.setupCalendar()

	submit := func(patient, priority string, flex int) RequestResponse {
		var resp RequestResponse
		rec := s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID), SubmitRequest{
			Patient:            patient,
			DesiredStart:       nineOClock(),
			Priority:           priority,
			FlexibilityMinutes: flex,
		}, &resp)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		assert.Equal(t, "pending", resp.Status)
		return resp
	}
	routine := submit("Routine Patient", "routine", 30)
	urgent := submit("Urgent Patient", "urgent", 0)
	emergency := submit("Emergency Patient", "emergency", 0)

	var report ReportResponse
	rec := s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/process", calID), nil, &report)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, emergency.ID, report.Outcomes[0].RequestID)
	assert.Equal(t, "confirmed", report.Outcomes[0].Status)
	assert.Equal(t, urgent.ID, report.Outcomes[1].RequestID)
	assert.Equal(t, "rejected", report.Outcomes[1].Status)
	assert.Equal(t, "no_available_slot", report.Outcomes[1].Reason)
	assert.Equal(t, routine.ID, report.Outcomes[2].RequestID)
	assert.Equal(t, 30, report.Outcomes[2].OffsetMinutes)
	assert.Equal(t, 2, report.Confirmed)

	var appts []AppointmentResponse
	rec = s.do(http.MethodGet, fmt.Sprintf("/calendars/%s/appointments", calID), nil, &appts)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, appts, 2)
	assert.Equal(t, "Emergency Patient", appts[0].Patient)

	cancelPath := fmt.Sprintf("/calendars/%s/appointments/%s/cancel", calID, emergency.ID)
	var cancelled RequestResponse
	rec = s.do(http.MethodPost, cancelPath, nil, &cancelled)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", cancelled.Status)

	var errResp ErrorResponse
	rec = s.do(http.MethodPost, cancelPath, nil, &errResp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "request_not_confirmed", errResp.Error)

	var free []SlotResponse
	rec = s.do(http.MethodGet, fmt.Sprintf("/calendars/%s/slots?status=free", calID), nil, &free)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, free, 1)
	assert.Equal(t, nineOClock(), free[0].Start.UTC())

	var got RequestResponse
	rec = s.do(http.MethodGet, "/requests/"+urgent.ID.String(), nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", got.Status)
}

func TestAPI_Reschedule(t *testing.T) {
	s := newTestServer(t)
	calID := s.setupCalendar()

	var booked RequestResponse
	rec := s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID), SubmitRequest{
		Patient:      "Moving Patient",
		DesiredStart: nineOClock(),
		Priority:     "urgent",
	}, &booked)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/process", calID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	path := fmt.Sprintf("/calendars/%s/appointments/%s/reschedule", calID, booked.ID)

	var moved OutcomeResponse
	rec = s.do(http.MethodPost, path, RescheduleRequest{
		DesiredStart:       nineOClock().Add(20 * time.Minute),
		FlexibilityMinutes: 10,
	}, &moved)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", moved.Status)
	assert.Equal(t, "Moving Patient", moved.Patient)
	assert.Equal(t, "urgent", moved.Priority)
	require.NotNil(t, moved.SlotStart)
	assert.Equal(t, nineOClock().Add(30*time.Minute), moved.SlotStart.UTC())
	assert.Equal(t, 10, moved.OffsetMinutes)

	var stay OutcomeResponse
	rec = s.do(http.MethodPost, path, RescheduleRequest{
		DesiredStart: nineOClock().Add(10 * time.Minute),
	}, &stay)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rejected", stay.Status)
	assert.Equal(t, "no_available_slot", stay.Reason)

	var appts []AppointmentResponse
	rec = s.do(http.MethodGet, fmt.Sprintf("/calendars/%s/appointments", calID), nil, &appts)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, appts, 1)
	assert.Equal(t, nineOClock().Add(30*time.Minute), appts[0].Start.UTC())

	var errResp ErrorResponse
	rec = s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/appointments/%s/reschedule", calID, uuid.New()), RescheduleRequest{
		DesiredStart: nineOClock(),
	}, &errResp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "request_not_confirmed", errResp.Error)

	rec = s.do(http.MethodPost, path, RescheduleRequest{DesiredStart: nineOClock(), FlexibilityMinutes: -5}, &errResp)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errResp.Error)
}

func TestAPI_WithdrawPending(t *testing.T) {
	s := newTestServer(t)
	calID := s.setupCalendar()

	var resp RequestResponse
	s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID), SubmitRequest{
		Patient:      "Withdrawn",
		DesiredStart: nineOClock(),
		Priority:     "2",
	}, &resp)
	assert.Equal(t, "urgent", resp.Priority)

	path := fmt.Sprintf("/calendars/%s/requests/%s", calID, resp.ID)
	rec := s.do(http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var cal CalendarResponse
	s.do(http.MethodGet, "/calendars/"+calID.String(), nil, &cal)
	assert.Zero(t, cal.Pending)
	assert.Equal(t, 30, cal.StepMinutes)
}

func TestAPI_SnapshotRoundTrip(t *testing.T) {
	s := newTestServer(t)
	calID := s.setupCalendar()

	rec := s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/restore", calID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/snapshot", calID), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var cal CalendarResponse
	rec = s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/restore", calID), nil, &cal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, cal.Slots)
	assert.Equal(t, "Dr. House", cal.Doctor)
}

func TestAPI_Errors(t *testing.T) {
	s := newTestServer(t)
	calID := s.setupCalendar()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad calendar id", http.MethodGet, "/calendars/nope", nil, http.StatusBadRequest, "invalid_id"},
		{"unknown calendar", http.MethodGet, "/calendars/" + uuid.NewString(), nil, http.StatusNotFound, "calendar_not_found"},
		{"empty doctor", http.MethodPost, "/calendars", CreateCalendarRequest{}, http.StatusBadRequest, "invalid_calendar_config"},
		{"bad priority", http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID),
			SubmitRequest{Patient: "p", DesiredStart: nineOClock(), Priority: "whenever"}, http.StatusBadRequest, "invalid_priority"},
		{"missing patient", http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID),
			SubmitRequest{DesiredStart: nineOClock(), Priority: "routine"}, http.StatusBadRequest, "invalid_request"},
		{"overlapping generation", http.MethodPost, fmt.Sprintf("/calendars/%s/slots/generate", calID),
			GenerateSlotsRequest{StartDate: "2026-03-02", WorkStart: "09:15", WorkEnd: "10:15", SlotMinutes: 30}, http.StatusConflict, "slot_overlap"},
		{"bad weekday", http.MethodPost, fmt.Sprintf("/calendars/%s/slots/generate", calID),
			GenerateSlotsRequest{StartDate: "2026-03-02", WorkStart: "09:00", WorkEnd: "10:00", SlotMinutes: 30, Weekdays: []string{"funday"}},
			http.StatusBadRequest, "invalid_generation_config"},
		{"bad slot filter", http.MethodGet, fmt.Sprintf("/calendars/%s/slots?status=booked", calID), nil, http.StatusBadRequest, "invalid_status"},
		{"bad from", http.MethodGet, fmt.Sprintf("/calendars/%s/slots?from=yesterday", calID), nil, http.StatusBadRequest, "invalid_from"},
		{"unknown request", http.MethodGet, "/requests/" + uuid.NewString(), nil, http.StatusNotFound, "request_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			rec := s.do(tt.method, tt.path, tt.body, &errResp)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errResp.Error)
		})
	}
}

func TestHealth_DependenciesDisabled(t *testing.T) {
	s := newTestServer(t)

	var live LivenessResponse
	rec := s.do(http.MethodGet, "/health/live", nil, &live)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", live.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var ready ReadinessResponse
	rec = s.do(http.MethodGet, "/health/ready", nil, &ready)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])
	assert.Equal(t, "disabled", ready.Dependencies["redis"])
	assert.Zero(t, ready.Calendars)

	calID := s.setupCalendar()
	rec = s.do(http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID), SubmitRequest{
		Patient:      "Ann",
		Priority:     "routine",
		DesiredStart: nineOClock(),
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/health/ready", nil, &ready)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ready.Calendars)
	assert.Equal(t, 1, ready.Pending)
	assert.Equal(t, 2, ready.FreeSlots)
}
