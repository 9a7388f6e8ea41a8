package model

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus is the availability state of a slot.
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusBlocked   SlotStatus = "blocked"
	SlotStatusReserved  SlotStatus = "reserved"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// SlotType classifies what kind of appointment a slot serves.
type SlotType string

const (
	SlotTypeFirstVisit SlotType = "first_visit"
	SlotTypeFollowUp   SlotType = "follow_up"
	SlotTypeEmergency  SlotType = "emergency"
)

// ScarcityLevel buckets slot availability pressure for a doctor.
type ScarcityLevel string

const (
	ScarcityLow      ScarcityLevel = "low"
	ScarcityModerate ScarcityLevel = "moderate"
	ScarcityHigh     ScarcityLevel = "high"
	ScarcityCritical ScarcityLevel = "critical"
)

type Slot struct {
	Base
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	StartTime       time.Time  `db:"start_time" json:"start_time"`
	EndTime         time.Time  `db:"end_time" json:"end_time"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Status          SlotStatus `db:"status" json:"status"`
	SlotType        SlotType   `db:"slot_type" json:"slot_type"`

	IsPriorityOnly     bool             `db:"is_priority_only" json:"is_priority_only"`
	IsUrgentOnly       bool             `db:"is_urgent_only" json:"is_urgent_only"`
	MinComplianceLevel *ComplianceLevel `db:"min_compliance_level" json:"min_compliance_level,omitempty"`

	RecurrenceGroupID *uuid.UUID `db:"recurrence_group_id" json:"recurrence_group_id,omitempty"`
	IsRecurring       bool       `db:"is_recurring" json:"is_recurring"`
}

// IsAvailable reports whether the slot is open for booking.
func (s *Slot) IsAvailable() bool {
	return s.Status == SlotStatusAvailable
}

type CreateSlotRequest struct {
	StartTime          time.Time        `json:"start_time" binding:"required"`
	EndTime            time.Time        `json:"end_time" binding:"required,gtfield=StartTime"`
	DurationMinutes    int              `json:"duration_minutes" binding:"required,min=5,max=240"`
	SlotType           SlotType         `json:"slot_type" binding:"required,oneof=first_visit follow_up emergency"`
	IsPriorityOnly     bool             `json:"is_priority_only"`
	IsUrgentOnly       bool             `json:"is_urgent_only"`
	MinComplianceLevel *ComplianceLevel `json:"min_compliance_level" binding:"omitempty,oneof=platinum gold silver bronze probation"`
}

// BulkCreateSlotsRequest describes a recurring weekly pattern. Weekdays use
// time.Weekday numbering (0=Sunday). StartTimes are "HH:MM" strings.
type BulkCreateSlotsRequest struct {
	StartDate          time.Time        `json:"start_date" binding:"required"`
	EndDate            time.Time        `json:"end_date" binding:"required,gtfield=StartDate"`
	Weekdays           []int            `json:"weekdays" binding:"required,min=1,dive,min=0,max=6"`
	StartTimes         []string         `json:"start_times" binding:"required,min=1"`
	DurationMinutes    int              `json:"duration_minutes" binding:"required,min=5,max=240"`
	SlotType           SlotType         `json:"slot_type" binding:"required,oneof=first_visit follow_up emergency"`
	IsPriorityOnly     bool             `json:"is_priority_only"`
	IsUrgentOnly       bool             `json:"is_urgent_only"`
	MinComplianceLevel *ComplianceLevel `json:"min_compliance_level" binding:"omitempty,oneof=platinum gold silver bronze probation"`
}

// GenerateSlotsRequest auto-generates slots applying the doctor's slot
// type distribution.
type GenerateSlotsRequest struct {
	Days            int      `json:"days" binding:"required,min=1,max=365"`
	Weekdays        []int    `json:"weekdays" binding:"required,min=1,dive,min=0,max=6"`
	StartTimes      []string `json:"start_times" binding:"required,min=1"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=5,max=240"`
}

type SlotFilters struct {
	DoctorID  uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	Status    SlotStatus
	SlotType  SlotType
}

// ScarcityResult is the boundary contract of the scarcity calculator.
type ScarcityResult struct {
	Level                  ScarcityLevel `json:"level"`
	AvailableSlots         int           `json:"available_slots"`
	TotalSlots             int           `json:"total_slots"`
	AvailabilityPercentage float64       `json:"availability_percentage"`
	DaysAhead              int           `json:"days_ahead"`
}
