package model

import (
	"time"

	"github.com/google/uuid"
)

// PatientCategory is the medical category driving required visit frequency.
type PatientCategory string

const (
	CategoryCritical    PatientCategory = "critical"
	CategoryHighRisk    PatientCategory = "high_risk"
	CategoryModerate    PatientCategory = "moderate"
	CategoryStable      PatientCategory = "stable"
	CategoryMaintenance PatientCategory = "maintenance"
	CategoryHealthy     PatientCategory = "healthy"
)

// ComplianceLevel is the trust tier derived from the compliance score.
type ComplianceLevel string

const (
	CompliancePlatinum  ComplianceLevel = "platinum"
	ComplianceGold      ComplianceLevel = "gold"
	ComplianceSilver    ComplianceLevel = "silver"
	ComplianceBronze    ComplianceLevel = "bronze"
	ComplianceProbation ComplianceLevel = "probation"
)

// VisitFrequency is the required revisit cadence for a category.
type VisitFrequency string

const (
	FrequencyWeekly    VisitFrequency = "weekly"
	FrequencyBiweekly  VisitFrequency = "biweekly"
	FrequencyMonthly   VisitFrequency = "monthly"
	FrequencyQuarterly VisitFrequency = "quarterly"
	FrequencyBiannual  VisitFrequency = "biannual"
	FrequencyAnnual    VisitFrequency = "annual"
)

var categoryFrequency = map[PatientCategory]VisitFrequency{
	CategoryCritical:    FrequencyWeekly,
	CategoryHighRisk:    FrequencyBiweekly,
	CategoryModerate:    FrequencyMonthly,
	CategoryStable:      FrequencyQuarterly,
	CategoryMaintenance: FrequencyBiannual,
	CategoryHealthy:     FrequencyAnnual,
}

var frequencyDays = map[VisitFrequency]int{
	FrequencyWeekly:    7,
	FrequencyBiweekly:  14,
	FrequencyMonthly:   30,
	FrequencyQuarterly: 90,
	FrequencyBiannual:  180,
	FrequencyAnnual:    365,
}

// Frequency returns the visit frequency for a category. Unknown categories
// fall back to quarterly; that is the documented default, not an error.
func (c PatientCategory) Frequency() VisitFrequency {
	if f, ok := categoryFrequency[c]; ok {
		return f
	}
	return FrequencyQuarterly
}

// IntervalDays returns the category's revisit interval in days.
func (c PatientCategory) IntervalDays() int {
	return frequencyDays[c.Frequency()]
}

// Rank orders compliance levels, platinum highest.
func (l ComplianceLevel) Rank() int {
	switch l {
	case CompliancePlatinum:
		return 5
	case ComplianceGold:
		return 4
	case ComplianceSilver:
		return 3
	case ComplianceBronze:
		return 2
	case ComplianceProbation:
		return 1
	}
	return 0
}

// ComplianceLevelForScore maps a 0-100 score onto its tier. Patient rows
// must never carry a level that disagrees with this mapping.
func ComplianceLevelForScore(score int) ComplianceLevel {
	switch {
	case score >= 90:
		return CompliancePlatinum
	case score >= 75:
		return ComplianceGold
	case score >= 50:
		return ComplianceSilver
	case score >= 25:
		return ComplianceBronze
	default:
		return ComplianceProbation
	}
}

type Patient struct {
	Base
	Email        string  `db:"email" json:"email"`
	PasswordHash string  `db:"password_hash" json:"-"`
	FirstName    string  `db:"first_name" json:"first_name"`
	LastName     string  `db:"last_name" json:"last_name"`
	Phone        *string `db:"phone" json:"phone,omitempty"`
	DateOfBirth  *string `db:"date_of_birth" json:"date_of_birth,omitempty"`

	Category PatientCategory `db:"category" json:"category"`
	Notes    *string         `db:"notes" json:"notes,omitempty"`

	ComplianceLevel   ComplianceLevel `db:"compliance_level" json:"compliance_level"`
	ComplianceScore   int             `db:"compliance_score" json:"compliance_score"`
	TotalAppointments int             `db:"total_appointments" json:"total_appointments"`
	NoShows           int             `db:"no_shows" json:"no_shows"`
	LateCancellations int             `db:"late_cancellations" json:"late_cancellations"`

	PrimaryDoctorID *uuid.UUID `db:"primary_doctor_id" json:"primary_doctor_id,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
}

// SetComplianceScore is the only way compliance state may change: score and
// tier move together.
func (p *Patient) SetComplianceScore(score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	p.ComplianceScore = score
	p.ComplianceLevel = ComplianceLevelForScore(score)
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// CancellationRate is the share of appointments the patient missed or
// cancelled late.
func (p *Patient) CancellationRate() float64 {
	if p.TotalAppointments == 0 {
		return 0
	}
	return float64(p.NoShows+p.LateCancellations) / float64(p.TotalAppointments)
}

type RegisterPatientRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	FirstName   string  `json:"first_name" binding:"required,max=100"`
	LastName    string  `json:"last_name" binding:"required,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,len=10"`
}

type UpdatePatientRequest struct {
	FirstName *string          `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string          `json:"last_name" binding:"omitempty,max=100"`
	Phone     *string          `json:"phone" binding:"omitempty,max=20"`
	Category  *PatientCategory `json:"category" binding:"omitempty,oneof=critical high_risk moderate stable maintenance healthy"`
	Notes     *string          `json:"notes"`
}

type PatientFilters struct {
	Category PatientCategory
	Level    ComplianceLevel
	IsActive *bool
}

// BookingWindow is the boundary contract of the booking-window calculator.
type BookingWindow struct {
	CanBook            bool       `json:"can_book"`
	EarliestDate       *time.Time `json:"earliest_date"`
	LatestDate         *time.Time `json:"latest_date"`
	Reason             *string    `json:"reason"`
	HasActiveBooking   bool       `json:"has_active_booking"`
	VisitFrequencyDays int        `json:"visit_frequency_days"`
}
