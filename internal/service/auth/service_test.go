package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository/repositorytest"
	"github.com/medbook/scheduling-api/pkg/auth"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
	"github.com/medbook/scheduling-api/pkg/security"
)

func newTestService(store *repositorytest.Store) *Service {
	tokens := auth.NewJWTService("test-secret", "test-refresh-secret", time.Hour, 24*time.Hour)
	return NewService(store.Patients(), store.Doctors(), security.NewBcryptHasher(4), tokens)
}

func seedPatient(t *testing.T, store *repositorytest.Store, active bool) *model.Patient {
	t.Helper()
	hash, err := security.NewBcryptHasher(4).Hash("correct-horse")
	require.NoError(t, err)
	return store.AddPatient(&model.Patient{
		Email:        "ada@example.com",
		PasswordHash: hash,
		FirstName:    "Ada",
		LastName:     "Nowak",
		IsActive:     active,
	})
}

func TestLoginPatient(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store)
	seedPatient(t, store, true)

	pair, patient, err := svc.LoginPatient(context.Background(), &LoginRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "ada@example.com", patient.Email)
}

func TestLoginPatientBadPassword(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store)
	seedPatient(t, store, true)

	_, _, err := svc.LoginPatient(context.Background(), &LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong-password",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestLoginPatientUnknownEmail(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store)

	// Unknown email and bad password are indistinguishable to the caller.
	_, _, err := svc.LoginPatient(context.Background(), &LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct-horse",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestLoginPatientDeactivated(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store)
	seedPatient(t, store, false)

	_, _, err := svc.LoginPatient(context.Background(), &LoginRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestLoginDoctor(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store)

	hash, err := security.NewBcryptHasher(4).Hash("correct-horse")
	require.NoError(t, err)
	store.AddDoctor(&model.Doctor{
		Email:        "maria@clinic.example",
		PasswordHash: hash,
		FirstName:    "Maria",
		LastName:     "Silva",
		IsActive:     true,
	})

	pair, doctor, err := svc.LoginDoctor(context.Background(), &LoginRequest{
		Email:    "maria@clinic.example",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "maria@clinic.example", doctor.Email)
}

func TestRefresh(t *testing.T) {
	store := repositorytest.NewStore()
	svc := newTestService(store)
	seedPatient(t, store, true)

	pair, _, err := svc.LoginPatient(context.Background(), &LoginRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	renewed, err := svc.Refresh(context.Background(), &RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, renewed.AccessToken)

	// An access token is not a refresh token.
	_, err = svc.Refresh(context.Background(), &RefreshRequest{RefreshToken: pair.AccessToken})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}
