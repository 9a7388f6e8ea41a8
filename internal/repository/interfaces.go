package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
)

// Sentinel errors the storage layer reports; services translate them into
// API errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrSlotUnavailable = errors.New("slot is no longer available")
)

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filters *model.PatientFilters, page *model.Pagination) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, page *model.Pagination) ([]*model.Doctor, error)
	}

	SlotRepository interface {
		Create(ctx context.Context, slot *model.Slot) error
		CreateBatch(ctx context.Context, slots []*model.Slot) error
		Get(ctx context.Context, id uuid.UUID) (*model.Slot, error)
		List(ctx context.Context, filters *model.SlotFilters) ([]*model.Slot, error)
		ListAvailable(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Slot, error)
		AvailableDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
		CountAvailability(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (available, total int, err error)
		Block(ctx context.Context, doctorID, slotID uuid.UUID) error
		DeleteRecurrenceGroup(ctx context.Context, doctorID, groupID uuid.UUID) (int64, error)
		ReserveEarliest(ctx context.Context, doctorID uuid.UUID, from, to time.Time, count int) (int64, error)
		ReleaseReservedBefore(ctx context.Context, doctorID uuid.UUID, before time.Time) (int64, error)
	}

	BookingRepository interface {
		// CreateWithSlot books the slot and inserts the booking plus its
		// lifecycle event in one transaction. A slot already taken surfaces
		// as ErrSlotUnavailable.
		CreateWithSlot(ctx context.Context, booking *model.Booking, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		List(ctx context.Context, filters *model.BookingFilters, page *model.Pagination) ([]*model.Booking, error)
		GetActiveForPatient(ctx context.Context, patientID uuid.UUID) (*model.Booking, error)
		LastCompletedSlotStart(ctx context.Context, patientID uuid.UUID) (*time.Time, error)
		Cancel(ctx context.Context, booking *model.Booking, releaseSlot bool, event *model.OutboxEvent) error
		UpdateWithEvent(ctx context.Context, booking *model.Booking, event *model.OutboxEvent) error
		Reschedule(ctx context.Context, old, replacement *model.Booking, event *model.OutboxEvent) error
	}

	QuestionnaireRepository interface {
		CreateCompliance(ctx context.Context, q *model.ComplianceQuestionnaire) error
		GetComplianceByPatient(ctx context.Context, patientID uuid.UUID) (*model.ComplianceQuestionnaire, error)
		CreateTriage(ctx context.Context, q *model.TriageQuestionnaire) error
		GetTriage(ctx context.Context, id uuid.UUID) (*model.TriageQuestionnaire, error)
		UpdateTriage(ctx context.Context, q *model.TriageQuestionnaire) error
		ListPendingTriageForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.TriageQuestionnaire, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
