package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samasante/scheduling-service/internal/config"
	"github.com/samasante/scheduling-service/internal/observability/metrics"
	redisclient "github.com/samasante/scheduling-service/internal/redis"
)

const (
	EventBookingCreated = "BOOKING_CREATED"
	EventStatusChanged  = "APPOINTMENT_STATUS_CHANGED"
	EventReminderSent   = "REMINDER_SENT"
)

var (
	// The three caller-visible booking rejections. Each implies a different
	// corrective action, so they never collapse into a generic failure.
	ErrLeadTimeTooShort = errors.New("booking lead time too short")
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrSlotTaken        = errors.New("slot already taken")

	ErrDoctorBusy = errors.New("doctor is currently being booked, please retry")

	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

type BookingRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	SiteID    *uuid.UUID
	Start     time.Time
	End       time.Time
	Motive    string
	Source    string
}

// BookingService gates appointment creation so that no two bookings ever
// hold overlapping confirmed windows for the same doctor. The per-doctor
// Redis lock serializes concurrent attempts; the database exclusion
// constraint is the final arbiter if the lock ever fails open.
type BookingService struct {
	repo    Repository
	avail   *AvailabilityService
	locker  redisclient.Locker
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time
}

func NewBookingService(repo Repository, avail *AvailabilityService, locker redisclient.Locker, cfg config.Config, logger *zap.Logger, m *metrics.SchedulingMetrics) *BookingService {
	return &BookingService{
		repo:    repo,
		avail:   avail,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Book validates and creates an appointment. Checks run in order, each
// with its own rejection:
//  1. minimum lead time,
//  2. rule conformance (the window must sit on the partitioning grid of
//     some rule for that day),
//  3. a fresh overlap query against booked appointments.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(bookingOutcome(err))
	return appt, err
}

func (s *BookingService) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if _, err := s.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	duration := req.End.Sub(req.Start)
	if duration <= 0 {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err := s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		if req.Start.Before(s.now().Add(s.cfg.MinLeadTime)) {
			return ErrLeadTimeTooShort
		}

		day := DayOf(req.Start.In(s.cfg.Location))
		grid, err := s.avail.ruleSlots(lockCtx, req.DoctorID, day, duration, req.SiteID)
		if err != nil {
			return err
		}
		if !containsWindow(grid, req.Start, req.End) {
			return ErrSlotUnavailable
		}

		// Time passed between the client fetching slots and submitting, so
		// another booking may have landed; re-check right before insert.
		busy, err := s.repo.ListBookedIntervals(lockCtx, req.DoctorID, req.Start, req.End)
		if err != nil {
			return fmt.Errorf("overlap re-check: %w", err)
		}
		if len(busy) > 0 {
			return ErrSlotTaken
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			SiteID:    req.SiteID,
			Start:     req.Start,
			End:       req.End,
			Status:    StatusBooked,
			Motive:    req.Motive,
			Source:    req.Source,
		})
		if err != nil {
			if errors.Is(err, ErrBookingOverlap) {
				return ErrSlotTaken
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventBookingCreated, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"start":      req.Start,
			"end":        req.End,
			"source":     req.Source,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	return created, nil
}

// Transition moves a booked appointment to done, cancelled or no_show.
// Appointments are never deleted; the row is retained for audit and
// billing.
func (s *BookingService) Transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	switch to {
	case StatusDone, StatusCancelled, StatusNoShow:
	default:
		return nil, ErrInvalidTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusBooked, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race against another transition.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(StatusBooked),
		"to":   string(to),
	})

	return updated, nil
}

func (s *BookingService) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}

func containsWindow(slots []Slot, start, end time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true
		}
	}
	return false
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrLeadTimeTooShort):
		return "lead_time_too_short"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrSlotTaken):
		return "slot_already_taken"
	case errors.Is(err, ErrDoctorBusy):
		return "doctor_being_booked"
	default:
		return "error"
	}
}
