package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/medbook/scheduling-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type slotRepository struct {
	BaseRepository
}

type bookingRepository struct {
	BaseRepository
}

type questionnaireRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func NewSlotRepository(db *sqlx.DB) repository.SlotRepository {
	return &slotRepository{NewBaseRepository(db)}
}

func NewBookingRepository(db *sqlx.DB) repository.BookingRepository {
	return &bookingRepository{NewBaseRepository(db)}
}

func NewQuestionnaireRepository(db *sqlx.DB) repository.QuestionnaireRepository {
	return &questionnaireRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}
