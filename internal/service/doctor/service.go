package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
)

type Service struct {
	repo repository.DoctorRepository
}

func NewService(repo repository.DoctorRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doctor, nil
}

func (s *Service) List(ctx context.Context, page *model.Pagination) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	doctor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		doctor.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		doctor.LastName = *req.LastName
	}
	if req.Phone != nil {
		doctor.Phone = req.Phone
	}
	if req.Specialisation != nil {
		doctor.Specialisation = req.Specialisation
	}
	if req.Bio != nil {
		doctor.Bio = req.Bio
	}
	if req.DefaultSlotDurationMinutes != nil {
		doctor.DefaultSlotDurationMinutes = *req.DefaultSlotDurationMinutes
	}
	if req.BookingWindowDays != nil {
		doctor.BookingWindowDays = *req.BookingWindowDays
	}
	if req.MaxDailyAppointments != nil {
		doctor.MaxDailyAppointments = *req.MaxDailyAppointments
	}
	if req.SlotDistribution != nil {
		if !req.SlotDistribution.Valid() {
			return nil, apperrors.NewValidation("slot distribution must sum to 100")
		}
		doctor.SlotDistribution = *req.SlotDistribution
	}
	if req.AutoGenerateDays != nil {
		doctor.AutoGenerateDays = *req.AutoGenerateDays
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to update doctor: %w", err)
	}
	return doctor, nil
}
