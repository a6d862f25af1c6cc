package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/calendar"
	"github.com/hackgods/priority-appointment-scheduling/internal/queue"
	redisclient "github.com/hackgods/priority-appointment-scheduling/internal/redis"
)

func createCalendarHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCalendarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		info, err := svc.CreateCalendar(r.Context(), req.Doctor)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCalendarResponse(info))
	}
}

func listCalendarsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := svc.Calendars(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp := make([]CalendarResponse, 0, len(infos))
		for _, info := range infos {
			resp = append(resp, toCalendarResponse(info))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getCalendarHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		info, err := svc.CalendarInfo(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCalendarResponse(info))
	}
}

func generateSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req GenerateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		params, err := toGenerateParams(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_generation_config", err.Error())
			return
		}

		n, err := svc.GenerateSlots(r.Context(), id, params)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{Generated: n})
	}
}

func toGenerateParams(req GenerateSlotsRequest) (appointment.GenerateParams, error) {
	var p appointment.GenerateParams
	var err error

	if p.StartDate, err = time.Parse(time.DateOnly, req.StartDate); err != nil {
		return p, fmt.Errorf("start_date must be YYYY-MM-DD")
	}
	p.EndDate = p.StartDate
	if req.EndDate != "" {
		if p.EndDate, err = time.Parse(time.DateOnly, req.EndDate); err != nil {
			return p, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
	}
	if p.Hours.Start, err = calendar.ParseClock(req.WorkStart); err != nil {
		return p, err
	}
	if p.Hours.End, err = calendar.ParseClock(req.WorkEnd); err != nil {
		return p, err
	}
	p.SlotDuration = time.Duration(req.SlotMinutes) * time.Minute

	if req.BreakStart != "" || req.BreakEnd != "" {
		if p.BreakStart, err = calendar.ParseClock(req.BreakStart); err != nil {
			return p, err
		}
		if p.BreakEnd, err = calendar.ParseClock(req.BreakEnd); err != nil {
			return p, err
		}
	}
	for _, name := range req.Weekdays {
		day, err := calendar.ParseWeekday(name)
		if err != nil {
			return p, err
		}
		p.Weekdays = append(p.Weekdays, day)
	}
	return p, nil
}

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var from, to time.Time
		q := r.URL.Query()
		for key, dst := range map[string]*time.Time{"from": &from, "to": &to} {
			raw := q.Get(key)
			if raw == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be an RFC 3339 timestamp")
				return
			}
			*dst = t
		}

		var (
			slots []calendar.Slot
			err   error
		)
		switch q.Get("status") {
		case "", "all":
			slots, err = svc.Slots(r.Context(), id, from, to)
		case string(calendar.SlotFree):
			slots, err = svc.AvailableSlots(r.Context(), id, from, to)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be free or all")
			return
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func submitRequestHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var body SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		req, err := toQueueRequest(body)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		stored, err := svc.Submit(r.Context(), id, req)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		rec, err := svc.Record(stored.ID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toRequestResponse(rec))
	}
}

func withdrawRequestHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		requestID, ok := uuidParam(w, r, "requestID")
		if !ok {
			return
		}

		if _, err := svc.Withdraw(r.Context(), id, requestID); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func processHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		report, err := svc.ProcessPending(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReportResponse(report))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		appts, err := svc.Appointments(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		requestID, ok := uuidParam(w, r, "requestID")
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), requestID, id); err != nil {
			handleServiceError(w, err)
			return
		}
		rec, err := svc.Record(requestID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(rec))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		requestID, ok := uuidParam(w, r, "requestID")
		if !ok {
			return
		}

		var body RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		flex := time.Duration(body.FlexibilityMinutes) * time.Minute
		out, err := svc.Reschedule(r.Context(), requestID, id, body.DesiredStart, flex)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		rec, err := svc.Record(requestID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOutcomeResponse(rec.Request.Patient, rec.Request.Priority, out))
	}
}

func getRequestHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, ok := uuidParam(w, r, "requestID")
		if !ok {
			return
		}
		rec, err := svc.Record(requestID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(rec))
	}
}

func saveSnapshotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Save(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func restoreSnapshotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Load(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		info, err := svc.CalendarInfo(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCalendarResponse(info))
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrCalendarNotFound):
		writeError(w, http.StatusNotFound, "calendar_not_found", err.Error())
	case errors.Is(err, appointment.ErrRequestNotConfirmed):
		writeError(w, http.StatusNotFound, "request_not_confirmed", err.Error())
	case errors.Is(err, appointment.ErrRequestNotFound),
		errors.Is(err, queue.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, appointment.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, "snapshot_not_found", err.Error())
	case errors.Is(err, calendar.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, queue.ErrInvalidPriority):
		writeError(w, http.StatusBadRequest, "invalid_priority", err.Error())
	case errors.Is(err, queue.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, calendar.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, "invalid_calendar_config", err.Error())
	case errors.Is(err, calendar.ErrOverlap),
		errors.Is(err, calendar.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "slot_overlap", err.Error())
	case errors.Is(err, calendar.ErrSlotNotFree),
		errors.Is(err, calendar.ErrSlotAlreadyFree):
		writeError(w, http.StatusConflict, "slot_state_conflict", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInconsistentSnapshot):
		writeError(w, http.StatusConflict, "inconsistent_snapshot", err.Error())
	case errors.Is(err, appointment.ErrCalendarBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
