package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	"github.com/medbook/scheduling-api/pkg/auth"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
	"github.com/medbook/scheduling-api/pkg/security"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type Service struct {
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	hasher   security.PasswordHasher
	tokens   auth.JWTService
}

func NewService(
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	hasher security.PasswordHasher,
	tokens auth.JWTService,
) *Service {
	return &Service{
		patients: patients,
		doctors:  doctors,
		hasher:   hasher,
		tokens:   tokens,
	}
}

var errBadCredentials = errors.New("invalid email or password")

// LoginPatient authenticates a patient and issues a token pair.
func (s *Service) LoginPatient(ctx context.Context, req *LoginRequest) (*auth.TokenPair, *model.Patient, error) {
	patient, err := s.patients.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NewUnauthorized(errBadCredentials)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up patient: %w", err)
	}

	if !patient.IsActive {
		return nil, nil, apperrors.NewForbidden("account is deactivated")
	}
	if err := s.hasher.Compare(patient.PasswordHash, req.Password); err != nil {
		return nil, nil, apperrors.NewUnauthorized(errBadCredentials)
	}

	pair, err := s.tokens.GenerateTokenPair(patient.ID, patient.Email, auth.RolePatient)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, patient, nil
}

// LoginDoctor authenticates a doctor and issues a token pair.
func (s *Service) LoginDoctor(ctx context.Context, req *LoginRequest) (*auth.TokenPair, *model.Doctor, error) {
	doctor, err := s.doctors.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NewUnauthorized(errBadCredentials)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up doctor: %w", err)
	}

	if !doctor.IsActive {
		return nil, nil, apperrors.NewForbidden("account is deactivated")
	}
	if err := s.hasher.Compare(doctor.PasswordHash, req.Password); err != nil {
		return nil, nil, apperrors.NewUnauthorized(errBadCredentials)
	}

	pair, err := s.tokens.GenerateTokenPair(doctor.ID, doctor.Email, auth.RoleDoctor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, doctor, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, req *RefreshRequest) (*auth.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, apperrors.NewUnauthorized(err)
	}

	pair, err := s.tokens.GenerateTokenPair(claims.SubjectID, claims.Email, claims.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}
