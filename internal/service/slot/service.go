package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	"github.com/medbook/scheduling-api/internal/service/priority"
	"github.com/medbook/scheduling-api/pkg/clock"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
)

type Service struct {
	repo     repository.SlotRepository
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
	priority *priority.Service
	clock    clock.Clock
}

func NewService(
	repo repository.SlotRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	prioritySvc *priority.Service,
	clk clock.Clock,
) *Service {
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		priority: prioritySvc,
		clock:    clk,
	}
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreateSlotRequest) (*model.Slot, error) {
	if !req.StartTime.After(s.clock.Now()) {
		return nil, apperrors.NewValidation("slot must start in the future")
	}

	slot := &model.Slot{
		DoctorID:           doctorID,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		DurationMinutes:    req.DurationMinutes,
		Status:             model.SlotStatusAvailable,
		SlotType:           req.SlotType,
		IsPriorityOnly:     req.IsPriorityOnly,
		IsUrgentOnly:       req.IsUrgentOnly,
		MinComplianceLevel: req.MinComplianceLevel,
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}
	return slot, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	slot, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("slot", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// parseClockTime turns "HH:MM" into hour and minute.
func parseClockTime(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, apperrors.NewValidation(fmt.Sprintf("invalid start time %q, want HH:MM", value))
	}
	return t.Hour(), t.Minute(), nil
}

// BulkCreate materialises a weekly recurring pattern between two dates. All
// generated slots share a recurrence group so the pattern can be removed in
// one call.
func (s *Service) BulkCreate(ctx context.Context, doctorID uuid.UUID, req *model.BulkCreateSlotsRequest) ([]*model.Slot, error) {
	weekdays := make(map[time.Weekday]bool, len(req.Weekdays))
	for _, d := range req.Weekdays {
		weekdays[time.Weekday(d)] = true
	}

	groupID := uuid.New()
	now := s.clock.Now()
	var slots []*model.Slot

	for day := req.StartDate; !day.After(req.EndDate); day = day.AddDate(0, 0, 1) {
		if !weekdays[day.Weekday()] {
			continue
		}
		for _, startStr := range req.StartTimes {
			hour, minute, err := parseClockTime(startStr)
			if err != nil {
				return nil, err
			}

			start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
			if !start.After(now) {
				continue
			}

			slots = append(slots, &model.Slot{
				DoctorID:           doctorID,
				StartTime:          start,
				EndTime:            start.Add(time.Duration(req.DurationMinutes) * time.Minute),
				DurationMinutes:    req.DurationMinutes,
				Status:             model.SlotStatusAvailable,
				SlotType:           req.SlotType,
				IsPriorityOnly:     req.IsPriorityOnly,
				IsUrgentOnly:       req.IsUrgentOnly,
				MinComplianceLevel: req.MinComplianceLevel,
				RecurrenceGroupID:  &groupID,
				IsRecurring:        true,
			})
		}
	}

	if len(slots) == 0 {
		return nil, apperrors.NewValidation("pattern produces no future slots")
	}

	if err := s.repo.CreateBatch(ctx, slots); err != nil {
		return nil, fmt.Errorf("failed to create slots: %w", err)
	}
	return slots, nil
}

// Generate builds slots for the coming days applying the doctor's slot type
// distribution to each day: first visits take the earliest times, the
// emergency share the latest.
func (s *Service) Generate(ctx context.Context, doctorID uuid.UUID, req *model.GenerateSlotsRequest) ([]*model.Slot, error) {
	doctor, err := s.doctors.Get(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	dist := doctor.SlotDistribution
	if !dist.Valid() {
		dist = model.DefaultSlotDistribution()
	}

	weekdays := make(map[time.Weekday]bool, len(req.Weekdays))
	for _, d := range req.Weekdays {
		weekdays[time.Weekday(d)] = true
	}

	groupID := uuid.New()
	now := s.clock.Now()
	var slots []*model.Slot

	for offset := 0; offset < req.Days; offset++ {
		day := now.AddDate(0, 0, offset)
		if !weekdays[day.Weekday()] {
			continue
		}

		perDay := len(req.StartTimes)
		firstCount := perDay * dist.FirstVisit / 100
		emergencyCount := perDay * dist.Emergency / 100

		for i, startStr := range req.StartTimes {
			hour, minute, err := parseClockTime(startStr)
			if err != nil {
				return nil, err
			}

			start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
			if !start.After(now) {
				continue
			}

			slotType := model.SlotTypeFollowUp
			switch {
			case i < firstCount:
				slotType = model.SlotTypeFirstVisit
			case i >= perDay-emergencyCount:
				slotType = model.SlotTypeEmergency
			}

			slots = append(slots, &model.Slot{
				DoctorID:          doctorID,
				StartTime:         start,
				EndTime:           start.Add(time.Duration(req.DurationMinutes) * time.Minute),
				DurationMinutes:   req.DurationMinutes,
				Status:            model.SlotStatusAvailable,
				SlotType:          slotType,
				RecurrenceGroupID: &groupID,
				IsRecurring:       true,
			})
		}
	}

	if len(slots) == 0 {
		return nil, apperrors.NewValidation("schedule produces no future slots")
	}

	if err := s.repo.CreateBatch(ctx, slots); err != nil {
		return nil, fmt.Errorf("failed to generate slots: %w", err)
	}
	return slots, nil
}

func (s *Service) Block(ctx context.Context, doctorID, slotID uuid.UUID) error {
	err := s.repo.Block(ctx, doctorID, slotID)
	if errors.Is(err, repository.ErrSlotUnavailable) {
		return apperrors.NewConflict("slot cannot be blocked", err)
	}
	if err != nil {
		return fmt.Errorf("failed to block slot: %w", err)
	}
	return nil
}

// DeleteRecurrenceGroup removes the remaining open slots of a recurring
// pattern. Booked slots are untouched.
func (s *Service) DeleteRecurrenceGroup(ctx context.Context, doctorID, groupID uuid.UUID) (int64, error) {
	deleted, err := s.repo.DeleteRecurrenceGroup(ctx, doctorID, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recurrence group: %w", err)
	}
	if deleted == 0 {
		return 0, apperrors.NewNotFound("recurrence group", nil)
	}
	return deleted, nil
}

func (s *Service) ListForDoctor(ctx context.Context, filters *model.SlotFilters) ([]*model.Slot, error) {
	slots, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

// ListAvailableForPatient narrows the open calendar to what one patient is
// allowed to take. Emergency and urgent-reserved slots never appear in the
// general listing; compliance-gated slots are dropped when the patient does
// not meet the gate.
func (s *Service) ListAvailableForPatient(ctx context.Context, doctorID, patientID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	slots, err := s.repo.ListAvailable(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list available slots: %w", err)
	}

	filtered := slots[:0]
	for _, slot := range slots {
		if slot.SlotType == model.SlotTypeEmergency || slot.IsUrgentOnly {
			continue
		}
		if ok, _ := s.priority.CanAccess(patient, slot); !ok {
			continue
		}
		filtered = append(filtered, slot)
	}
	return filtered, nil
}

// ListEmergency returns open emergency slots across the window.
func (s *Service) ListEmergency(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	slots, err := s.repo.List(ctx, &model.SlotFilters{
		DoctorID:  doctorID,
		StartDate: from,
		EndDate:   to,
		Status:    model.SlotStatusAvailable,
		SlotType:  model.SlotTypeEmergency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency slots: %w", err)
	}
	return slots, nil
}

func (s *Service) AvailableDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	dates, err := s.repo.AvailableDates(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list available dates: %w", err)
	}
	return dates, nil
}
