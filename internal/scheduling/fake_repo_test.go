package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/samasante/scheduling-service/internal/config"
	redisclient "github.com/samasante/scheduling-service/internal/redis"
)

// fakeRepo is an in-memory Repository for service tests. CreateAppointment
// mimics the database exclusion constraint.
type fakeRepo struct {
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
	rules    []AvailabilityRule
	appts    []Appointment
	events   []EventLog

	rulesErr error

	// hideBookedIntervals makes conflict reads miss existing rows,
	// simulating the race window between re-check and insert.
	hideBookedIntervals bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
	}
}

func (f *fakeRepo) addDoctor() uuid.UUID {
	id := uuid.New()
	f.doctors[id] = &Doctor{ID: id, Name: "Dr. Test"}
	return id
}

func (f *fakeRepo) addPatient() uuid.UUID {
	id := uuid.New()
	f.patients[id] = &Patient{ID: id, Name: "Pat Test"}
	return id
}

func (f *fakeRepo) addRule(doctorID uuid.UUID, siteID *uuid.UUID, payload string) uuid.UUID {
	id := uuid.New()
	f.rules = append(f.rules, AvailabilityRule{ID: id, DoctorID: doctorID, SiteID: siteID, Payload: payload})
	return id
}

func (f *fakeRepo) addBooked(doctorID, patientID uuid.UUID, start, end time.Time) uuid.UUID {
	id := uuid.New()
	f.appts = append(f.appts, Appointment{
		ID: id, DoctorID: doctorID, PatientID: patientID,
		Start: start, End: end, Status: StatusBooked,
	})
	return id
}

func (f *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		return d, nil
	}
	return nil, ErrDoctorNotFound
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) ListRules(_ context.Context, doctorID uuid.UUID, siteID *uuid.UUID) ([]AvailabilityRule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	var out []AvailabilityRule
	for _, r := range f.rules {
		if r.DoctorID != doctorID {
			continue
		}
		if siteID != nil && r.SiteID != nil && *r.SiteID != *siteID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) CreateRule(_ context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	f.rules = append(f.rules, rule)
	return &rule, nil
}

func (f *fakeRepo) DeleteRule(_ context.Context, id, doctorID uuid.UUID) error {
	for i, r := range f.rules {
		if r.ID == id && r.DoctorID == doctorID {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

func (f *fakeRepo) ListBookedIntervals(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Interval, error) {
	if f.hideBookedIntervals {
		return nil, nil
	}
	var out []Interval
	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.Status == StatusBooked && a.Start.Before(to) && a.End.After(from) {
			out = append(out, Interval{Start: a.Start, End: a.End})
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	for _, a := range f.appts {
		if a.DoctorID == appt.DoctorID && a.Status == StatusBooked &&
			Overlaps(appt.Start, appt.End, a.Start, a.End) {
			return nil, ErrBookingOverlap
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Status = StatusBooked
	f.appts = append(f.appts, appt)
	return &appt, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	for i := range f.appts {
		if f.appts[i].ID == id {
			a := f.appts[i]
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	for i := range f.appts {
		if f.appts[i].ID == id && f.appts[i].Status == from {
			f.appts[i].Status = to
			a := f.appts[i]
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) ListBookedStartingBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	var out []Appointment
	for _, a := range f.appts {
		if a.Status == StatusBooked && !a.Start.Before(from) && a.Start.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	f.events = append(f.events, ev)
	return nil
}

// fakeLocker runs the critical section inline. With held set it refuses,
// as a contended Redis lock would.
type fakeLocker struct {
	held bool
}

func (l *fakeLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	if l.held {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		MinLeadTime:     60 * time.Minute,
		MinSlotDuration: 5 * time.Minute,
		MaxSlotDuration: 120 * time.Minute,
		SearchHorizon:   30,
		ReminderWindow:  24 * time.Hour,
		Location:        time.UTC,
	}
}
