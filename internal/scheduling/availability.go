package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samasante/scheduling-service/internal/config"
	"github.com/samasante/scheduling-service/internal/observability/metrics"
)

// ErrNoAvailability means the next-availability scan exhausted its horizon.
var ErrNoAvailability = errors.New("no availability within search horizon")

// DaySlots is one bucket of a week query.
type DaySlots struct {
	Day   Day
	Slots []Slot
}

// AvailabilityService answers "what slots are free for a doctor". It is
// read-only; writes go through the BookingService.
type AvailabilityService struct {
	repo    Repository
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time
}

func NewAvailabilityService(repo Repository, cfg config.Config, logger *zap.Logger, m *metrics.SchedulingMetrics) *AvailabilityService {
	return &AvailabilityService{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// DailySlots computes the free slots for one doctor and calendar day.
// Rules union; identical (start, end) pairs across rules collapse to the
// first occurrence; the result is sorted chronologically. An unknown
// doctor or one with zero rules yields an empty list.
func (s *AvailabilityService) DailySlots(ctx context.Context, doctorID uuid.UUID, day Day, duration time.Duration, siteID *uuid.UUID) ([]Slot, error) {
	started := s.now()

	candidates, err := s.ruleSlots(ctx, doctorID, day, duration, siteID)
	if err != nil {
		return nil, err
	}

	busy, err := s.repo.ListBookedIntervals(ctx, doctorID, day.Start(s.cfg.Location), day.End(s.cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("list booked intervals: %w", err)
	}

	free := FilterConflicts(candidates, busy)

	sort.SliceStable(free, func(i, j int) bool {
		if !free[i].Start.Equal(free[j].Start) {
			return free[i].Start.Before(free[j].Start)
		}
		return free[i].End.Before(free[j].End)
	})

	s.metrics.ObserveAvailabilityLatency(s.now().Sub(started).Seconds())

	return free, nil
}

// NextAvailability scans forward day by day from `from`, bounded by the
// configured horizon, and returns the first free slot found.
func (s *AvailabilityService) NextAvailability(ctx context.Context, doctorID uuid.UUID, from Day, duration time.Duration, siteID *uuid.UUID) (*Slot, error) {
	day := from
	for i := 0; i < s.cfg.SearchHorizon; i++ {
		slots, err := s.DailySlots(ctx, doctorID, day, duration, siteID)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			return &slots[0], nil
		}
		day = day.Next()
	}
	return nil, ErrNoAvailability
}

// WeekSlots computes 7 consecutive day buckets starting at `from`. With
// hidePast set, slots starting before now plus the minimum booking lead
// are dropped; that filter is independent of the conflict filter.
func (s *AvailabilityService) WeekSlots(ctx context.Context, doctorID uuid.UUID, from Day, duration time.Duration, siteID *uuid.UUID, hidePast bool) ([]DaySlots, error) {
	cutoff := s.now().Add(s.cfg.MinLeadTime)

	week := make([]DaySlots, 0, 7)
	day := from
	for i := 0; i < 7; i++ {
		slots, err := s.DailySlots(ctx, doctorID, day, duration, siteID)
		if err != nil {
			return nil, err
		}

		if hidePast {
			kept := make([]Slot, 0, len(slots))
			for _, slot := range slots {
				if !slot.Start.Before(cutoff) {
					kept = append(kept, slot)
				}
			}
			slots = kept
		}

		week = append(week, DaySlots{Day: day, Slots: slots})
		day = day.Next()
	}

	return week, nil
}

// ruleSlots expands the doctor's rules into the partitioning grid for the
// day, deduplicated but not conflict-filtered. The booking validator uses
// this directly so that a taken slot is reported as taken, not as missing
// from the rules.
func (s *AvailabilityService) ruleSlots(ctx context.Context, doctorID uuid.UUID, day Day, duration time.Duration, siteID *uuid.UUID) ([]Slot, error) {
	rules, err := s.repo.ListRules(ctx, doctorID, siteID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	type slotKey struct {
		start int64
		end   int64
	}

	seen := make(map[slotKey]bool)
	var out []Slot

	for _, rule := range rules {
		spec, err := ParseRecurrence(rule.Payload)
		if err != nil {
			s.logger.Warn("skipping malformed availability rule",
				zap.String("rule_id", rule.ID.String()),
				zap.String("doctor_id", doctorID.String()),
				zap.Error(err))
			s.metrics.ObserveRuleSkipped()
			continue
		}

		blockStart, blockEnd, ok := spec.BlockFor(day, s.cfg.Location)
		if !ok {
			continue
		}

		for _, slot := range PartitionBlock(blockStart, blockEnd, duration) {
			key := slotKey{start: slot.Start.UnixNano(), end: slot.End.UnixNano()}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, slot)
		}
	}

	return out, nil
}
