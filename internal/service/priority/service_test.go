package priority

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository/repositorytest"
	"github.com/medbook/scheduling-api/pkg/clock"
	"github.com/medbook/scheduling-api/pkg/metrics"
)

var (
	baseTime    = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	testMetrics = metrics.NewMetrics("test", "priority")
)

func newTestService(store *repositorytest.Store, clk clock.Clock) *Service {
	return NewService(store.Slots(), store.Bookings(), store.Patients(), clk, testMetrics, 30, time.Minute)
}

func seedSlots(store *repositorytest.Store, doctorID uuid.UUID, available, booked int) {
	for i := 0; i < available+booked; i++ {
		status := model.SlotStatusAvailable
		if i >= available {
			status = model.SlotStatusBooked
		}
		store.AddSlot(&model.Slot{
			DoctorID:  doctorID,
			StartTime: baseTime.Add(time.Duration(i+1) * time.Hour),
			EndTime:   baseTime.Add(time.Duration(i+1)*time.Hour + 30*time.Minute),
			Status:    status,
			SlotType:  model.SlotTypeFollowUp,
		})
	}
}

func TestScarcityLevels(t *testing.T) {
	tests := []struct {
		name        string
		available   int
		booked      int
		expected    model.ScarcityLevel
		expectedPct float64
	}{
		{name: "plenty open", available: 10, booked: 10, expected: model.ScarcityLow, expectedPct: 50},
		{name: "filling up", available: 5, booked: 15, expected: model.ScarcityModerate, expectedPct: 25},
		{name: "scarce", available: 2, booked: 18, expected: model.ScarcityHigh, expectedPct: 10},
		{name: "nearly full", available: 1, booked: 19, expected: model.ScarcityCritical, expectedPct: 5},
		{name: "one of three", available: 1, booked: 2, expected: model.ScarcityModerate, expectedPct: 33.3},
		{name: "no slots at all", available: 0, booked: 0, expected: model.ScarcityCritical, expectedPct: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repositorytest.NewStore()
			svc := newTestService(store, clock.NewFixed(baseTime))
			doctorID := uuid.New()
			seedSlots(store, doctorID, tt.available, tt.booked)

			result, err := svc.Scarcity(context.Background(), doctorID)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, result.Level)
			assert.Equal(t, tt.available, result.AvailableSlots)
			assert.Equal(t, tt.available+tt.booked, result.TotalSlots)
			assert.InDelta(t, tt.expectedPct, result.AvailabilityPercentage, 0.01)
		})
	}
}

func TestScarcityIsCached(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))
	doctorID := uuid.New()
	seedSlots(store, doctorID, 10, 0)

	first, err := svc.Scarcity(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, model.ScarcityLow, first.Level)

	// New slots do not show up until the cache entry expires.
	seedSlots(store, doctorID, 0, 40)
	second, err := svc.Scarcity(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, first.TotalSlots, second.TotalSlots)
}

func TestReserveForUrgentClampsPercent(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))
	doctorID := uuid.New()
	seedSlots(store, doctorID, 20, 0)

	// 90% asked, 30% granted.
	reserved, err := svc.ReserveForUrgent(context.Background(), doctorID, 0.9)
	require.NoError(t, err)
	assert.Equal(t, int64(6), reserved)
}

func TestReserveForUrgentMinimumShare(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))
	doctorID := uuid.New()
	seedSlots(store, doctorID, 20, 0)

	// 1% asked, floor of 5% granted.
	reserved, err := svc.ReserveForUrgent(context.Background(), doctorID, 0.01)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reserved)
}

func TestReserveTakesEarliestSlots(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))
	doctorID := uuid.New()
	seedSlots(store, doctorID, 10, 0)

	_, err := svc.ReserveForUrgent(context.Background(), doctorID, 0.3)
	require.NoError(t, err)

	slots, err := store.Slots().List(context.Background(), &model.SlotFilters{DoctorID: doctorID})
	require.NoError(t, err)
	require.Len(t, slots, 10)
	for i, slot := range slots {
		if i < 3 {
			assert.Equal(t, model.SlotStatusReserved, slot.Status, "slot %d", i)
			assert.True(t, slot.IsUrgentOnly, "slot %d", i)
		} else {
			assert.Equal(t, model.SlotStatusAvailable, slot.Status, "slot %d", i)
			assert.False(t, slot.IsUrgentOnly, "slot %d", i)
		}
	}
}

func TestReleaseUnusedReturnsNearTermReserves(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))
	doctorID := uuid.New()

	near := store.AddSlot(&model.Slot{
		DoctorID:     doctorID,
		StartTime:    baseTime.Add(6 * time.Hour),
		Status:       model.SlotStatusReserved,
		IsUrgentOnly: true,
	})
	far := store.AddSlot(&model.Slot{
		DoctorID:  doctorID,
		StartTime: baseTime.Add(72 * time.Hour),
		Status:    model.SlotStatusReserved,
	})

	released, err := svc.ReleaseUnused(context.Background(), doctorID, 24)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)
	assert.Equal(t, model.SlotStatusAvailable, store.Slot(near.ID).Status)
	assert.False(t, store.Slot(near.ID).IsUrgentOnly)
	assert.Equal(t, model.SlotStatusReserved, store.Slot(far.ID).Status)
}

func TestCalculatePriorityWeights(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	critical := &model.Patient{Base: model.Base{ID: uuid.New()}, Category: model.CategoryCritical}
	critical.SetComplianceScore(95)

	// First-timer: no wait history, flat 30 wait credit.
	score := svc.CalculatePriority(critical, &model.Slot{}, model.UrgencyEmergency, nil, false)
	assert.Equal(t, critical.ID.String(), score.PatientID)
	assert.InDelta(t, 100, score.Category, 0.001)
	assert.InDelta(t, 50, score.Compliance, 0.001)
	assert.InDelta(t, 100, score.Urgency, 0.001)
	assert.InDelta(t, 30, score.WaitTime, 0.001)
	assert.InDelta(t, 280, score.Total, 0.001)
	assert.True(t, score.CanAccessSlot)
	assert.Nil(t, score.Reason)
}

func TestCalculatePriorityWaitTime(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	stable := &model.Patient{Base: model.Base{ID: uuid.New()}, Category: model.CategoryStable}
	stable.SetComplianceScore(50)

	// 40 days since last visit: half a point per day.
	lastVisit := baseTime.AddDate(0, 0, -40)
	score := svc.CalculatePriority(stable, &model.Slot{}, model.UrgencyRoutine, &lastVisit, false)
	assert.InDelta(t, 20, score.WaitTime, 0.001)

	// Wait credit caps at 50 no matter how long ago.
	lastVisit = baseTime.AddDate(-2, 0, 0)
	score = svc.CalculatePriority(stable, &model.Slot{}, model.UrgencyRoutine, &lastVisit, false)
	assert.InDelta(t, 50, score.WaitTime, 0.001)
}

func TestCalculatePriorityReturnBonus(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	stable := &model.Patient{Base: model.Base{ID: uuid.New()}, Category: model.CategoryStable}
	stable.SetComplianceScore(50)

	plain := svc.CalculatePriority(stable, &model.Slot{}, model.UrgencyRoutine, nil, false)
	assert.Zero(t, plain.ReturnBonus)

	// Rebooking after a doctor-side cancellation earns the bonus.
	returning := svc.CalculatePriority(stable, &model.Slot{}, model.UrgencyRoutine, nil, true)
	assert.InDelta(t, 20, returning.ReturnBonus, 0.001)
	assert.InDelta(t, plain.Total+20, returning.Total, 0.001)
}

func TestCalculatePriorityPenalty(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	flaky := &model.Patient{Base: model.Base{ID: uuid.New()}, Category: model.CategoryStable, NoShows: 3, LateCancellations: 2}
	flaky.SetComplianceScore(50)

	score := svc.CalculatePriority(flaky, &model.Slot{}, model.UrgencyRoutine, nil, false)
	assert.InDelta(t, 19, score.Penalty, 0.001)
}

func TestCalculatePriorityCarriesDenialReason(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	stable := &model.Patient{Base: model.Base{ID: uuid.New()}, Category: model.CategoryStable}
	stable.SetComplianceScore(50)

	score := svc.CalculatePriority(stable, &model.Slot{IsUrgentOnly: true}, "", nil, false)
	assert.False(t, score.CanAccessSlot)
	require.NotNil(t, score.Reason)
	assert.Equal(t, "slot reserved for urgent medical cases", *score.Reason)
}

func TestRankForSlotOrdersByTotal(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	low := store.AddPatient(&model.Patient{Email: "a@example.com", Category: model.CategoryHealthy})
	low.SetComplianceScore(10)
	high := store.AddPatient(&model.Patient{Email: "b@example.com", Category: model.CategoryCritical})
	high.SetComplianceScore(95)

	slot := &model.Slot{StartTime: baseTime.Add(24 * time.Hour)}
	scores, err := svc.RankForSlot(context.Background(), slot, []uuid.UUID{low.ID, high.ID})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, high.ID.String(), scores[0].PatientID)
	assert.Greater(t, scores[0].Total, scores[1].Total)
}

func TestRankForSlotDropsGatedPatients(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	trusted := store.AddPatient(&model.Patient{Email: "a@example.com", Category: model.CategoryStable})
	trusted.SetComplianceScore(80)
	probation := store.AddPatient(&model.Patient{Email: "b@example.com", Category: model.CategoryCritical})
	probation.SetComplianceScore(10)

	// Unknown ids are skipped, gate-failing patients are left out entirely.
	slot := &model.Slot{IsPriorityOnly: true}
	scores, err := svc.RankForSlot(context.Background(), slot, []uuid.UUID{trusted.ID, probation.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, trusted.ID.String(), scores[0].PatientID)
}

func TestCanAccess(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))

	gold := model.ComplianceGold

	makePatient := func(category model.PatientCategory, score int) *model.Patient {
		p := &model.Patient{Category: category}
		p.SetComplianceScore(score)
		return p
	}

	tests := []struct {
		name     string
		patient  *model.Patient
		slot     *model.Slot
		expected bool
	}{
		{
			name:     "open slot admits anyone",
			patient:  makePatient(model.CategoryHealthy, 10),
			slot:     &model.Slot{},
			expected: true,
		},
		{
			name:     "urgent-only slot admits critical category",
			patient:  makePatient(model.CategoryCritical, 10),
			slot:     &model.Slot{IsUrgentOnly: true},
			expected: true,
		},
		{
			name:     "urgent-only slot admits high-risk category",
			patient:  makePatient(model.CategoryHighRisk, 10),
			slot:     &model.Slot{IsUrgentOnly: true},
			expected: true,
		},
		{
			name:     "urgent-only slot refuses stable patients",
			patient:  makePatient(model.CategoryStable, 95),
			slot:     &model.Slot{IsUrgentOnly: true},
			expected: false,
		},
		{
			name:     "minimum compliance enforced",
			patient:  makePatient(model.CategoryStable, 60),
			slot:     &model.Slot{MinComplianceLevel: &gold},
			expected: false,
		},
		{
			name:     "minimum compliance met",
			patient:  makePatient(model.CategoryStable, 80),
			slot:     &model.Slot{MinComplianceLevel: &gold},
			expected: true,
		},
		{
			name:     "priority slot admits gold compliance",
			patient:  makePatient(model.CategoryHealthy, 80),
			slot:     &model.Slot{IsPriorityOnly: true},
			expected: true,
		},
		{
			name:     "priority slot refuses below gold regardless of category",
			patient:  makePatient(model.CategoryCritical, 60),
			slot:     &model.Slot{IsPriorityOnly: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := svc.CanAccess(tt.patient, tt.slot)
			assert.Equal(t, tt.expected, ok)
			if tt.expected {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestScarcityPercentageRounding(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store, clock.NewFixed(baseTime))
	doctorID := uuid.New()
	seedSlots(store, doctorID, 2, 1)

	result, err := svc.Scarcity(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%.1f", 66.7), fmt.Sprintf("%.1f", result.AvailabilityPercentage))
}
