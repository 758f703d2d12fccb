package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/samasante/scheduling-service/internal/scheduling"
)

var validate = validator.New()

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	PatientID string `json:"patient_id" validate:"required,uuid"`
	SiteID    string `json:"site_id,omitempty" validate:"omitempty,uuid"`
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
	Motive    string `json:"motive" validate:"max=500"`
	Source    string `json:"source" validate:"max=50"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=done cancelled no_show"`
}

type CreateRuleRequest struct {
	SiteID     string `json:"site_id,omitempty" validate:"omitempty,uuid"`
	Frequency  string `json:"frequency" validate:"required"`
	DaysOfWeek []int  `json:"daysOfWeek" validate:"required,min=1"`
	StartTime  string `json:"startTime" validate:"required"`
	EndTime    string `json:"endTime" validate:"required"`
}

type SlotResponse struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

type DaySlotsResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type AppointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	SiteID    *uuid.UUID `json:"site_id,omitempty"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Status    string     `json:"status"`
	Motive    string     `json:"motive,omitempty"`
	Source    string     `json:"source,omitempty"`
}

type RuleResponse struct {
	ID      uuid.UUID  `json:"id"`
	SiteID  *uuid.UUID `json:"site_id,omitempty"`
	Payload string     `json:"payload"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		Start:           s.Start,
		End:             s.End,
		DurationMinutes: int(s.Duration.Minutes()),
	}
}

func toSlotResponses(slots []scheduling.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		SiteID:    a.SiteID,
		Start:     a.Start,
		End:       a.End,
		Status:    string(a.Status),
		Motive:    a.Motive,
		Source:    a.Source,
	}
}
