package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusDone      AppointmentStatus = "done"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityRule holds a serialized recurrence payload as the wider
// platform stores it. The payload is parsed on demand; see ParseRecurrence.
type AvailabilityRule struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	SiteID    *uuid.UUID
	Payload   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	SiteID    *uuid.UUID
	Start     time.Time
	End       time.Time
	Status    AppointmentStatus
	Motive    string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is derived, never persisted. Its identity for dedup purposes is the
// (Start, End) pair.
type Slot struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Interval is a booked window used for conflict checks.
type Interval struct {
	Start time.Time
	End   time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
