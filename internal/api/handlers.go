package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/samasante/scheduling-service/internal/config"
	"github.com/samasante/scheduling-service/internal/scheduling"
)

// Availability is the read side of the scheduling core.
type Availability interface {
	DailySlots(ctx context.Context, doctorID uuid.UUID, day scheduling.Day, duration time.Duration, siteID *uuid.UUID) ([]scheduling.Slot, error)
	NextAvailability(ctx context.Context, doctorID uuid.UUID, from scheduling.Day, duration time.Duration, siteID *uuid.UUID) (*scheduling.Slot, error)
	WeekSlots(ctx context.Context, doctorID uuid.UUID, from scheduling.Day, duration time.Duration, siteID *uuid.UUID, hidePast bool) ([]scheduling.DaySlots, error)
}

// Booker is the write side.
type Booker interface {
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, to scheduling.AppointmentStatus) (*scheduling.Appointment, error)
}

// RuleStore covers the rule CRUD the doctor endpoints need; the scheduling
// Repository satisfies it.
type RuleStore interface {
	ListRules(ctx context.Context, doctorID uuid.UUID, siteID *uuid.UUID) ([]scheduling.AvailabilityRule, error)
	CreateRule(ctx context.Context, rule scheduling.AvailabilityRule) (*scheduling.AvailabilityRule, error)
	DeleteRule(ctx context.Context, id, doctorID uuid.UUID) error
}

// AppointmentReader reads a single appointment; the Repository satisfies it.
type AppointmentReader interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// Query parsing helpers

func parseDoctorID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("doctorID must be a valid UUID")
	}
	return id, nil
}

func parseSiteID(r *http.Request) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("site_id")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("site_id must be a valid UUID")
	}
	return &id, nil
}

func parseDayParam(r *http.Request, name string) (scheduling.Day, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return scheduling.Day{}, fmt.Errorf("%s is required (YYYY-MM-DD)", name)
	}
	day, err := scheduling.ParseDay(raw)
	if err != nil {
		return scheduling.Day{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return day, nil
}

// parseDuration range-checks the requested slot duration. Out-of-bound
// durations are a client error, never the availability service's concern.
func parseDuration(r *http.Request, cfg config.Config) (time.Duration, error) {
	raw := r.URL.Query().Get("duration")
	if raw == "" {
		return 0, fmt.Errorf("duration is required (minutes)")
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("duration must be an integer number of minutes")
	}
	d := time.Duration(minutes) * time.Minute
	if d < cfg.MinSlotDuration || d > cfg.MaxSlotDuration {
		return 0, fmt.Errorf("duration must be between %d and %d minutes",
			int(cfg.MinSlotDuration.Minutes()), int(cfg.MaxSlotDuration.Minutes()))
	}
	return d, nil
}

// Availability handlers

func getDailySlotsHandler(svc Availability, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseDoctorID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		day, err := parseDayParam(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		duration, err := parseDuration(r, cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
			return
		}
		siteID, err := parseSiteID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_site_id", err.Error())
			return
		}

		slots, err := svc.DailySlots(r.Context(), doctorID, day, duration, siteID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, DaySlotsResponse{
			Date:  day.String(),
			Slots: toSlotResponses(slots),
		})
	}
}

func getWeekSlotsHandler(svc Availability, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseDoctorID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		from, err := parseDayParam(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		duration, err := parseDuration(r, cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
			return
		}
		siteID, err := parseSiteID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_site_id", err.Error())
			return
		}
		hidePast := r.URL.Query().Get("hide_past") == "true"

		week, err := svc.WeekSlots(r.Context(), doctorID, from, duration, siteID, hidePast)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]DaySlotsResponse, 0, len(week))
		for _, bucket := range week {
			out = append(out, DaySlotsResponse{
				Date:  bucket.Day.String(),
				Slots: toSlotResponses(bucket.Slots),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getNextAvailabilityHandler(svc Availability, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseDoctorID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		from, err := parseDayParam(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		duration, err := parseDuration(r, cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
			return
		}
		siteID, err := parseSiteID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_site_id", err.Error())
			return
		}

		slot, err := svc.NextAvailability(r.Context(), doctorID, from, duration, siteID)
		if err != nil {
			if errors.Is(err, scheduling.ErrNoAvailability) {
				writeError(w, http.StatusNotFound, "no_availability", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(*slot))
	}
}

// Booking handlers

func createAppointmentHandler(svc Booker, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)
		patientID, _ := uuid.Parse(req.PatientID)

		var siteID *uuid.UUID
		if req.SiteID != "" {
			id, _ := uuid.Parse(req.SiteID)
			siteID = &id
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 instant")
			return
		}
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be an RFC 3339 instant")
			return
		}

		duration := end.Sub(start)
		if duration < cfg.MinSlotDuration || duration > cfg.MaxSlotDuration {
			writeError(w, http.StatusBadRequest, "invalid_duration",
				fmt.Sprintf("appointment length must be between %d and %d minutes",
					int(cfg.MinSlotDuration.Minutes()), int(cfg.MaxSlotDuration.Minutes())))
			return
		}

		source := req.Source
		if source == "" {
			source = "api"
		}

		appt, err := svc.Book(r.Context(), scheduling.BookingRequest{
			DoctorID:  doctorID,
			PatientID: patientID,
			SiteID:    siteID,
			Start:     start,
			End:       end,
			Motive:    req.Motive,
			Source:    source,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrLeadTimeTooShort):
		writeError(w, http.StatusConflict, "lead_time_too_short", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_taken", err.Error())
	case errors.Is(err, scheduling.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_being_booked", "doctor is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func getAppointmentHandler(reader AppointmentReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := reader.GetAppointmentByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionAppointmentHandler(svc Booker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		appt, err := svc.Transition(r.Context(), id, scheduling.AppointmentStatus(req.Status))
		if err != nil {
			switch {
			case errors.Is(err, scheduling.ErrAppointmentNotFound):
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			case errors.Is(err, scheduling.ErrInvalidTransition):
				writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// Rule handlers

func listRulesHandler(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseDoctorID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		siteID, err := parseSiteID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_site_id", err.Error())
			return
		}

		rules, err := store.ListRules(r.Context(), doctorID, siteID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]RuleResponse, 0, len(rules))
		for _, rule := range rules {
			out = append(out, RuleResponse{ID: rule.ID, SiteID: rule.SiteID, Payload: rule.Payload})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createRuleHandler(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseDoctorID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}

		var req CreateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		payload, err := json.Marshal(map[string]any{
			"frequency":  req.Frequency,
			"daysOfWeek": req.DaysOfWeek,
			"startTime":  req.StartTime,
			"endTime":    req.EndTime,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		// New rules go through the typed parser so malformed payloads are
		// rejected at the door instead of silently skipped later.
		if _, err := scheduling.ParseRecurrence(string(payload)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule", err.Error())
			return
		}

		var siteID *uuid.UUID
		if req.SiteID != "" {
			id, _ := uuid.Parse(req.SiteID)
			siteID = &id
		}

		rule, err := store.CreateRule(r.Context(), scheduling.AvailabilityRule{
			DoctorID: doctorID,
			SiteID:   siteID,
			Payload:  string(payload),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, RuleResponse{ID: rule.ID, SiteID: rule.SiteID, Payload: rule.Payload})
	}
}

func deleteRuleHandler(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseDoctorID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule_id", "ruleID must be a valid UUID")
			return
		}

		if err := store.DeleteRule(r.Context(), ruleID, doctorID); err != nil {
			if errors.Is(err, scheduling.ErrRuleNotFound) {
				writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
