package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mondayMorningRule = `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"09:40"}`

func newAvailability(repo *fakeRepo) *AvailabilityService {
	return NewAvailabilityService(repo, testConfig(), zap.NewNop(), nil)
}

func TestDailySlotsMondayMorningScenario(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	repo.addRule(doctorID, nil, mondayMorningRule)

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)

	require.Len(t, slots, 2)
	assert.Equal(t, at(9, 0), slots[0].Start)
	assert.Equal(t, at(9, 20), slots[0].End)
	assert.Equal(t, at(9, 20), slots[1].Start)
	assert.Equal(t, at(9, 40), slots[1].End)
}

func TestDailySlotsWithBookedAppointment(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	patientID := repo.addPatient()
	repo.addRule(doctorID, nil, mondayMorningRule)
	repo.addBooked(doctorID, patientID, at(9, 0), at(9, 20))

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, at(9, 20), slots[0].Start)
	assert.Equal(t, at(9, 40), slots[0].End)
}

func TestDailySlotsTouchingBoundaryIsNotConflict(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	patientID := repo.addPatient()
	repo.addRule(doctorID, nil, `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"10:20","endTime":"10:40"}`)
	repo.addBooked(doctorID, patientID, at(10, 0), at(10, 20))

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, at(10, 20), slots[0].Start)
}

func TestDailySlotsDeduplicatesAcrossRules(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	rule := `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"10:00"}`
	repo.addRule(doctorID, nil, rule)
	repo.addRule(doctorID, nil, rule)

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)

	assert.Len(t, slots, 3)
}

func TestDailySlotsMultipleRulesSortedChronologically(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	// Afternoon rule stored before the morning one.
	repo.addRule(doctorID, nil, `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"14:00","endTime":"15:00"}`)
	repo.addRule(doctorID, nil, `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"10:00"}`)

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 30*time.Minute, nil)
	require.NoError(t, err)

	require.Len(t, slots, 4)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].Start.After(slots[i-1].Start) || slots[i].Start.Equal(slots[i-1].Start))
	}
	assert.Equal(t, at(9, 0), slots[0].Start)
	assert.Equal(t, at(14, 30), slots[3].Start)
}

func TestDailySlotsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	repo.addRule(doctorID, nil, mondayMorningRule)

	svc := newAvailability(repo)
	first, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)
	second, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDailySlotsSkipsMalformedRule(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	repo.addRule(doctorID, nil, `{broken`)
	repo.addRule(doctorID, nil, mondayMorningRule)

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.NoError(t, err)

	// The healthy rule still contributes.
	assert.Len(t, slots, 2)
}

func TestDailySlotsUnknownDoctorIsEmpty(t *testing.T) {
	repo := newFakeRepo()

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), uuid.New(), monday, 20*time.Minute, nil)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestDailySlotsSiteFilter(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	siteA := uuid.New()
	siteB := uuid.New()
	repo.addRule(doctorID, &siteA, `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"09:00","endTime":"10:00"}`)
	repo.addRule(doctorID, &siteB, `{"frequency":"WEEKLY","daysOfWeek":[1],"startTime":"14:00","endTime":"15:00"}`)

	svc := newAvailability(repo)
	slots, err := svc.DailySlots(context.Background(), doctorID, monday, 30*time.Minute, &siteA)
	require.NoError(t, err)

	require.Len(t, slots, 2)
	assert.Equal(t, at(9, 0), slots[0].Start)
}

func TestNextAvailabilityFindsFirstNonEmptyDay(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	repo.addRule(doctorID, nil, mondayMorningRule)

	svc := newAvailability(repo)
	// Scan from Tuesday: the following Monday (2025-06-09) is the first hit.
	slot, err := svc.NextAvailability(context.Background(), doctorID, tuesday, 20*time.Minute, nil)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.June, 9, 9, 0, 0, 0, time.UTC), slot.Start)
}

func TestNextAvailabilityHorizonExhausted(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()

	svc := newAvailability(repo)
	_, err := svc.NextAvailability(context.Background(), doctorID, monday, 20*time.Minute, nil)
	require.ErrorIs(t, err, ErrNoAvailability)
}

func TestWeekSlotsBuckets(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	repo.addRule(doctorID, nil, mondayMorningRule)

	svc := newAvailability(repo)
	week, err := svc.WeekSlots(context.Background(), doctorID, monday, 20*time.Minute, nil, false)
	require.NoError(t, err)

	require.Len(t, week, 7)
	assert.Equal(t, monday, week[0].Day)
	assert.Len(t, week[0].Slots, 2)
	for i := 1; i < 7; i++ {
		assert.Empty(t, week[i].Slots, "day %s", week[i].Day)
	}
}

func TestWeekSlotsHidePast(t *testing.T) {
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	repo.addRule(doctorID, nil, mondayMorningRule)

	svc := newAvailability(repo)
	// Now is Monday 08:30; with a 60 minute lead, the 09:00 slot is too
	// soon but 09:20 survives.
	svc.now = func() time.Time { return at(8, 30) }

	week, err := svc.WeekSlots(context.Background(), doctorID, monday, 20*time.Minute, nil, true)
	require.NoError(t, err)

	require.Len(t, week[0].Slots, 1)
	assert.Equal(t, at(9, 20), week[0].Slots[0].Start)

	// Without hidePast both slots stay.
	week, err = svc.WeekSlots(context.Background(), doctorID, monday, 20*time.Minute, nil, false)
	require.NoError(t, err)
	assert.Len(t, week[0].Slots, 2)
}

func TestDailySlotsSlotCountMatchesFloor(t *testing.T) {
	tests := []struct {
		window   string
		duration time.Duration
		want     int
	}{
		{`"startTime":"09:00","endTime":"10:00"`, 20 * time.Minute, 3},
		{`"startTime":"09:00","endTime":"10:00"`, 25 * time.Minute, 2},
		{`"startTime":"09:00","endTime":"09:10"`, 20 * time.Minute, 0},
		{`"startTime":"08:00","endTime":"18:00"`, 60 * time.Minute, 10},
	}

	for _, tt := range tests {
		repo := newFakeRepo()
		doctorID := repo.addDoctor()
		repo.addRule(doctorID, nil, `{"frequency":"WEEKLY","daysOfWeek":[1],`+tt.window+`}`)

		svc := newAvailability(repo)
		slots, err := svc.DailySlots(context.Background(), doctorID, monday, tt.duration, nil)
		require.NoError(t, err)
		assert.Len(t, slots, tt.want, "window %s duration %s", tt.window, tt.duration)
	}
}
