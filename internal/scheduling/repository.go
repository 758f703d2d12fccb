package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrRuleNotFound        = errors.New("availability rule not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrBookingOverlap is surfaced by the storage layer when the database
	// exclusion constraint rejects an insert.
	ErrBookingOverlap = errors.New("appointment overlaps an existing booking")
)

// Repository contains all DB interactions needed by the services.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Availability rules
	ListRules(ctx context.Context, doctorID uuid.UUID, siteID *uuid.UUID) ([]AvailabilityRule, error)
	CreateRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error)
	DeleteRule(ctx context.Context, id, doctorID uuid.UUID) error

	// Conflict checks: booked windows intersecting [from, to)
	ListBookedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Interval, error)

	// Appointment lifecycle
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Reminder worker
	ListBookedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
