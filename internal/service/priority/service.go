package priority

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	"github.com/medbook/scheduling-api/pkg/clock"
	"github.com/medbook/scheduling-api/pkg/metrics"
)

// Reserve share for urgent cases is clamped to a sane band regardless of
// what the caller asks for.
const (
	minReservePercent = 0.05
	maxReservePercent = 0.30
)

var categoryWeights = map[model.PatientCategory]float64{
	model.CategoryCritical:    100,
	model.CategoryHighRisk:    80,
	model.CategoryModerate:    60,
	model.CategoryStable:      40,
	model.CategoryMaintenance: 20,
	model.CategoryHealthy:     10,
}

var complianceWeights = map[model.ComplianceLevel]float64{
	model.CompliancePlatinum:  50,
	model.ComplianceGold:      40,
	model.ComplianceSilver:    30,
	model.ComplianceBronze:    20,
	model.ComplianceProbation: 10,
}

var urgencyWeights = map[model.UrgencyLevel]float64{
	model.UrgencyEmergency: 100,
	model.UrgencyUrgent:    70,
	model.UrgencyModerate:  40,
	model.UrgencyRoutine:   10,
}

type Service struct {
	slots     repository.SlotRepository
	bookings  repository.BookingRepository
	patients  repository.PatientRepository
	cache     *gocache.Cache
	clock     clock.Clock
	metrics   *metrics.Metrics
	daysAhead int
}

func NewService(
	slots repository.SlotRepository,
	bookings repository.BookingRepository,
	patients repository.PatientRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	daysAhead int,
	cacheTTL time.Duration,
) *Service {
	return &Service{
		slots:     slots,
		bookings:  bookings,
		patients:  patients,
		cache:     gocache.New(cacheTTL, 2*cacheTTL),
		clock:     clk,
		metrics:   m,
		daysAhead: daysAhead,
	}
}

// Scarcity reports how contested a doctor's calendar is over the coming
// window. Results are cached briefly; scarcity moves slowly enough that a
// stale read is harmless.
func (s *Service) Scarcity(ctx context.Context, doctorID uuid.UUID) (*model.ScarcityResult, error) {
	key := doctorID.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.ScarcityResult), nil
	}

	now := s.clock.Now()
	available, total, err := s.slots.CountAvailability(ctx, doctorID, now, now.AddDate(0, 0, s.daysAhead))
	if err != nil {
		return nil, fmt.Errorf("failed to count availability: %w", err)
	}

	result := &model.ScarcityResult{
		Level:          model.ScarcityCritical,
		AvailableSlots: available,
		TotalSlots:     total,
		DaysAhead:      s.daysAhead,
	}
	if total > 0 {
		pct := float64(available) / float64(total) * 100
		result.AvailabilityPercentage = math.Round(pct*10) / 10
		switch {
		case pct >= 50:
			result.Level = model.ScarcityLow
		case pct >= 25:
			result.Level = model.ScarcityModerate
		case pct >= 10:
			result.Level = model.ScarcityHigh
		}
	}

	s.cache.Set(key, result, gocache.DefaultExpiration)
	return result, nil
}

// ReserveForUrgent parks the earliest share of open slots for urgent cases.
// The share is clamped to [5%, 30%] of the total pool.
func (s *Service) ReserveForUrgent(ctx context.Context, doctorID uuid.UUID, percent float64) (int64, error) {
	if percent < minReservePercent {
		percent = minReservePercent
	}
	if percent > maxReservePercent {
		percent = maxReservePercent
	}

	now := s.clock.Now()
	to := now.AddDate(0, 0, s.daysAhead)

	_, total, err := s.slots.CountAvailability(ctx, doctorID, now, to)
	if err != nil {
		return 0, fmt.Errorf("failed to count availability: %w", err)
	}

	count := int(math.Floor(float64(total) * percent))
	if count == 0 {
		return 0, nil
	}

	reserved, err := s.slots.ReserveEarliest(ctx, doctorID, now, to, count)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve slots: %w", err)
	}

	s.metrics.SlotsReserved.Add(float64(reserved))
	s.cache.Delete(doctorID.String())
	return reserved, nil
}

// ReleaseUnused returns reserved slots starting within hoursAhead back to
// the general pool. Safe to run repeatedly.
func (s *Service) ReleaseUnused(ctx context.Context, doctorID uuid.UUID, hoursAhead int) (int64, error) {
	before := s.clock.Now().Add(time.Duration(hoursAhead) * time.Hour)

	released, err := s.slots.ReleaseReservedBefore(ctx, doctorID, before)
	if err != nil {
		return 0, fmt.Errorf("failed to release reserved slots: %w", err)
	}

	s.metrics.SlotsReleased.Add(float64(released))
	if released > 0 {
		s.cache.Delete(doctorID.String())
	}
	return released, nil
}

// CalculatePriority scores a patient for a specific slot. lastVisit is the
// start of the most recent completed appointment, nil for first-timers; an
// empty urgency contributes nothing. The result carries the slot access
// verdict alongside the score breakdown.
func (s *Service) CalculatePriority(
	patient *model.Patient,
	slot *model.Slot,
	urgency model.UrgencyLevel,
	lastVisit *time.Time,
	returnAfterCancel bool,
) *model.PriorityScore {
	score := &model.PriorityScore{PatientID: patient.ID.String()}

	score.Category = weightOr(categoryWeights, patient.Category, 30)
	score.Compliance = weightOr(complianceWeights, patient.ComplianceLevel, 20)
	if urgency != "" {
		score.Urgency = weightOr(urgencyWeights, urgency, 10)
	}

	if lastVisit == nil {
		score.WaitTime = 30
	} else {
		days := s.clock.Now().Sub(*lastVisit).Hours() / 24
		score.WaitTime = math.Min(days*0.5, 50)
	}

	score.Penalty = float64(patient.NoShows*5 + patient.LateCancellations*2)
	if returnAfterCancel {
		score.ReturnBonus = 20
	}

	score.Total = score.Category + score.Compliance + score.Urgency +
		score.WaitTime + score.ReturnBonus - score.Penalty

	ok, reason := s.CanAccess(patient, slot)
	score.CanAccessSlot = ok
	if reason != "" {
		score.Reason = &reason
	}
	return score
}

func weightOr[K comparable](weights map[K]float64, key K, fallback float64) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	return fallback
}

// RankForSlot scores the candidate patients for one slot and orders them
// highest first. Patients failing the slot's access rules are left out, as
// are unknown ids. Ties keep the incoming order.
func (s *Service) RankForSlot(ctx context.Context, slot *model.Slot, patientIDs []uuid.UUID) ([]*model.PriorityScore, error) {
	scores := make([]*model.PriorityScore, 0, len(patientIDs))
	for _, id := range patientIDs {
		patient, err := s.patients.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get patient for ranking: %w", err)
		}

		lastVisit, err := s.bookings.LastCompletedSlotStart(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get last visit for ranking: %w", err)
		}

		score := s.CalculatePriority(patient, slot, "", lastVisit, false)
		if score.CanAccessSlot {
			scores = append(scores, score)
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total > scores[j].Total
	})
	return scores, nil
}

// CanAccess decides whether a patient may take a restricted slot. The
// returned reason is empty when access is granted.
func (s *Service) CanAccess(patient *model.Patient, slot *model.Slot) (bool, string) {
	if slot.MinComplianceLevel != nil &&
		patient.ComplianceLevel.Rank() < slot.MinComplianceLevel.Rank() {
		return false, fmt.Sprintf("requires %s compliance level", *slot.MinComplianceLevel)
	}
	if slot.IsPriorityOnly && patient.ComplianceLevel.Rank() < model.ComplianceGold.Rank() {
		return false, "slot reserved for high-compliance patients"
	}
	if slot.IsUrgentOnly &&
		patient.Category != model.CategoryCritical && patient.Category != model.CategoryHighRisk {
		return false, "slot reserved for urgent medical cases"
	}
	return true, ""
}
