package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/samasante/scheduling-service/internal/config"
)

// Notifier delivers patient-facing reminders. Provider integrations (SMS,
// push, email) live outside this service; the default implementation only
// logs.
type Notifier interface {
	NotifyUpcoming(ctx context.Context, appt Appointment) error
}

type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyUpcoming(_ context.Context, appt Appointment) error {
	n.logger.Info("appointment reminder",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("patient_id", appt.PatientID.String()),
		zap.Time("start", appt.Start))
	return nil
}

// ReminderMarker dedupes reminders across worker runs and replicas.
type ReminderMarker interface {
	First(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReminderService is driven by the reminder worker on a fixed interval.
type ReminderService struct {
	repo     Repository
	notifier Notifier
	marker   ReminderMarker
	cfg      config.Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewReminderService(repo Repository, notifier Notifier, marker ReminderMarker, cfg config.Config, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		repo:     repo,
		notifier: notifier,
		marker:   marker,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SendDueReminders notifies patients of booked appointments starting within
// the reminder window. Each appointment is reminded at most once; a Redis
// marker outlives the window so repeated runs skip it.
func (s *ReminderService) SendDueReminders(ctx context.Context) error {
	now := s.now()

	due, err := s.repo.ListBookedStartingBetween(ctx, now, now.Add(s.cfg.ReminderWindow))
	if err != nil {
		return fmt.Errorf("list due appointments: %w", err)
	}

	for _, appt := range due {
		key := fmt.Sprintf("reminder:appointment:%s", appt.ID.String())
		first, err := s.marker.First(ctx, key, 2*s.cfg.ReminderWindow)
		if err != nil {
			s.logger.Error("reminder dedup marker", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		if !first {
			continue
		}

		if err := s.notifier.NotifyUpcoming(ctx, appt); err != nil {
			s.logger.Error("send reminder", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}

		apptID := appt.ID
		payload, _ := json.Marshal(map[string]any{"start": appt.Start})
		if err := s.repo.InsertEvent(ctx, EventLog{
			EventType:     EventReminderSent,
			AppointmentID: &apptID,
			Payload:       payload,
			CreatedAt:     now,
		}); err != nil {
			s.logger.Error("insert reminder event", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		}
	}

	return nil
}
