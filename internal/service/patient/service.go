package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	"github.com/medbook/scheduling-api/pkg/clock"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
	"github.com/medbook/scheduling-api/pkg/security"
)

// New patients sit mid-tier until their questionnaire says otherwise.
const initialComplianceScore = 50

type Service struct {
	repo           repository.PatientRepository
	doctors        repository.DoctorRepository
	bookings       repository.BookingRepository
	questionnaires repository.QuestionnaireRepository
	hasher         security.PasswordHasher
	clock          clock.Clock
	windowDays     int
}

func NewService(
	repo repository.PatientRepository,
	doctors repository.DoctorRepository,
	bookings repository.BookingRepository,
	questionnaires repository.QuestionnaireRepository,
	hasher security.PasswordHasher,
	clk clock.Clock,
	windowDays int,
) *Service {
	return &Service{
		repo:           repo,
		doctors:        doctors,
		bookings:       bookings,
		questionnaires: questionnaires,
		hasher:         hasher,
		clock:          clk,
		windowDays:     windowDays,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterPatientRequest) (*model.Patient, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewValidation("password does not meet requirements")
	}

	patient := &model.Patient{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		DateOfBirth:  req.DateOfBirth,
		Category:     model.CategoryStable,
		IsActive:     true,
	}
	patient.SetComplianceScore(initialComplianceScore)

	if err := s.repo.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", err)
		}
		return nil, fmt.Errorf("failed to register patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		patient.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		patient.LastName = *req.LastName
	}
	if req.Phone != nil {
		patient.Phone = req.Phone
	}
	if req.Category != nil {
		patient.Category = *req.Category
	}
	if req.Notes != nil {
		patient.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return patient, nil
}

func (s *Service) List(ctx context.Context, filters *model.PatientFilters, page *model.Pagination) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// SubmitComplianceQuestionnaire records the one-off self-assessment and
// resets the patient's compliance score from it. A second submission is
// rejected.
func (s *Service) SubmitComplianceQuestionnaire(ctx context.Context, patientID uuid.UUID, req *model.SubmitComplianceRequest) (*model.ComplianceQuestionnaire, error) {
	patient, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	existing, err := s.questionnaires.GetComplianceByPatient(ctx, patientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing questionnaire: %w", err)
	}
	if existing != nil {
		return nil, apperrors.NewConflict("compliance questionnaire already submitted", nil)
	}

	now := s.clock.Now()
	q := &model.ComplianceQuestionnaire{
		PatientID:                      patientID,
		MissedAppointmentsRating:       req.MissedAppointmentsRating,
		CancellationNoticeRating:       req.CancellationNoticeRating,
		ScheduleImportanceRating:       req.ScheduleImportanceRating,
		RescheduleCommitmentRating:     req.RescheduleCommitmentRating,
		FlexibilityRating:              req.FlexibilityRating,
		Agrees24hCancellation:          req.Agrees24hCancellation,
		AgreesNoShowPenalty:            req.AgreesNoShowPenalty,
		AgreesReschedulePolicy:         req.AgreesReschedulePolicy,
		AgreesCommunicationPreferences: req.AgreesCommunicationPreferences,
		AdditionalNotes:                req.AdditionalNotes,
		CompletedAt:                    &now,
		IsComplete:                     true,
	}
	q.CalculateScore()

	if err := s.questionnaires.CreateCompliance(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to save questionnaire: %w", err)
	}

	patient.SetComplianceScore(q.CalculatedScore)
	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient compliance: %w", err)
	}
	return q, nil
}

func (s *Service) GetComplianceQuestionnaire(ctx context.Context, patientID uuid.UUID) (*model.ComplianceQuestionnaire, error) {
	q, err := s.questionnaires.GetComplianceByPatient(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("compliance questionnaire", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get questionnaire: %w", err)
	}
	return q, nil
}

// recalculateCompliance adjusts the running score from the appointment
// counters. The adjustment applies to the current score, so repeated
// no-shows compound. Patients with no appointment history keep their
// questionnaire-derived score untouched.
func recalculateCompliance(p *model.Patient) {
	if p.TotalAppointments == 0 {
		return
	}

	penalty := p.NoShows*10 + p.LateCancellations*5
	bonus := (p.TotalAppointments - p.NoShows) * 2
	if bonus > 20 {
		bonus = 20
	}
	p.SetComplianceScore(p.ComplianceScore - penalty + bonus)
}

// RecordNoShow counts a missed appointment against the patient.
func (s *Service) RecordNoShow(ctx context.Context, patientID uuid.UUID) error {
	patient, err := s.Get(ctx, patientID)
	if err != nil {
		return err
	}

	patient.TotalAppointments++
	patient.NoShows++
	recalculateCompliance(patient)

	if err := s.repo.Update(ctx, patient); err != nil {
		return fmt.Errorf("failed to record no-show: %w", err)
	}
	return nil
}

// RecordLateCancellation counts a cancellation inside the notice window.
func (s *Service) RecordLateCancellation(ctx context.Context, patientID uuid.UUID) error {
	patient, err := s.Get(ctx, patientID)
	if err != nil {
		return err
	}

	patient.LateCancellations++
	recalculateCompliance(patient)

	if err := s.repo.Update(ctx, patient); err != nil {
		return fmt.Errorf("failed to record late cancellation: %w", err)
	}
	return nil
}

// RecordCompleted counts an attended appointment.
func (s *Service) RecordCompleted(ctx context.Context, patientID uuid.UUID) error {
	patient, err := s.Get(ctx, patientID)
	if err != nil {
		return err
	}

	patient.TotalAppointments++
	recalculateCompliance(patient)

	if err := s.repo.Update(ctx, patient); err != nil {
		return fmt.Errorf("failed to record completed appointment: %w", err)
	}
	return nil
}

// GetNextBookingWindow computes when the patient may book next with the
// given doctor. An active booking blocks new ones; otherwise the window
// opens at the later of now and last completed visit plus the category
// interval, and closes at the doctor's booking horizon. A nil doctor id
// falls back to the default horizon.
func (s *Service) GetNextBookingWindow(ctx context.Context, patientID, doctorID uuid.UUID) (*model.BookingWindow, error) {
	patient, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	windowDays, err := s.bookingHorizonDays(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	intervalDays := patient.Category.IntervalDays()
	window := &model.BookingWindow{VisitFrequencyDays: intervalDays}

	active, err := s.bookings.GetActiveForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active bookings: %w", err)
	}
	if active != nil {
		reason := "you already have an active booking; cancel or reschedule it first"
		window.HasActiveBooking = true
		window.Reason = &reason
		return window, nil
	}

	now := s.clock.Now()
	earliest := now

	lastVisit, err := s.bookings.LastCompletedSlotStart(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last visit: %w", err)
	}
	if lastVisit != nil {
		next := lastVisit.AddDate(0, 0, intervalDays)
		if next.After(earliest) {
			earliest = next
		}
	}

	latest := now.AddDate(0, 0, windowDays)
	if earliest.After(latest) {
		reason := fmt.Sprintf("your next visit is not due until %s", earliest.Format("2006-01-02"))
		window.Reason = &reason
		window.EarliestDate = &earliest
		return window, nil
	}

	window.CanBook = true
	window.EarliestDate = &earliest
	window.LatestDate = &latest
	return window, nil
}

// bookingHorizonDays resolves how far ahead bookings are accepted: the
// doctor's configured horizon when set, the service default otherwise.
func (s *Service) bookingHorizonDays(ctx context.Context, doctorID uuid.UUID) (int, error) {
	if doctorID == uuid.Nil {
		return s.windowDays, nil
	}

	doctor, err := s.doctors.Get(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, apperrors.NewNotFound("doctor", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get doctor: %w", err)
	}

	if doctor.BookingWindowDays > 0 {
		return doctor.BookingWindowDays, nil
	}
	return s.windowDays, nil
}
