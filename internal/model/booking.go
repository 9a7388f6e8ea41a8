package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending            BookingStatus = "pending"
	BookingStatusConfirmed          BookingStatus = "confirmed"
	BookingStatusCompleted          BookingStatus = "completed"
	BookingStatusCancelledByPatient BookingStatus = "cancelled_by_patient"
	BookingStatusCancelledByDoctor  BookingStatus = "cancelled_by_doctor"
	BookingStatusNoShow             BookingStatus = "no_show"
	BookingStatusRescheduled        BookingStatus = "rescheduled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusNoShow,
		BookingStatusCancelledByPatient, BookingStatusCancelledByDoctor,
		BookingStatusRescheduled:
		return true
	}
	return false
}

type Booking struct {
	Base
	PatientID uuid.UUID     `db:"patient_id" json:"patient_id"`
	SlotID    uuid.UUID     `db:"slot_id" json:"slot_id"`
	Status    BookingStatus `db:"status" json:"status"`

	Reason *string `db:"reason" json:"reason,omitempty"`
	Notes  *string `db:"notes" json:"notes,omitempty"`

	IsEmergency   bool    `db:"is_emergency" json:"is_emergency"`
	UrgencyReason *string `db:"urgency_reason" json:"urgency_reason,omitempty"`

	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	// Reschedule chain: weak id references, forward list, never a cycle.
	RescheduledFromID *uuid.UUID `db:"rescheduled_from_id" json:"rescheduled_from_id,omitempty"`
	RescheduledToID   *uuid.UUID `db:"rescheduled_to_id" json:"rescheduled_to_id,omitempty"`

	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// IsCancellable reports whether the booking may still be cancelled or
// rescheduled by its patient.
func (b *Booking) IsCancellable() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// IsActive reports whether the booking still claims its slot.
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

type CreateBookingRequest struct {
	DoctorID      uuid.UUID `json:"doctor_id" binding:"required"`
	SlotID        uuid.UUID `json:"slot_id" binding:"required"`
	Reason        *string   `json:"reason" binding:"omitempty,max=1000"`
	Notes         *string   `json:"notes" binding:"omitempty,max=1000"`
	IsEmergency   bool      `json:"is_emergency"`
	UrgencyReason *string   `json:"urgency_reason" binding:"omitempty,max=1000"`
}

type RescheduleBookingRequest struct {
	NewSlotID uuid.UUID `json:"new_slot_id" binding:"required"`
	TriageID  uuid.UUID `json:"triage_id" binding:"required"`
}

type CancelBookingRequest struct {
	TriageID uuid.UUID `json:"triage_id" binding:"required"`
}

type BookingFilters struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	Status      BookingStatus
	StartDate   time.Time
	EndDate     time.Time
	IncludePast bool
}
