package model

import (
	"time"

	"github.com/google/uuid"
)

// UrgencyLevel is the triage outcome for a cancel/reschedule request.
type UrgencyLevel string

const (
	UrgencyEmergency UrgencyLevel = "emergency"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyModerate  UrgencyLevel = "moderate"
	UrgencyRoutine   UrgencyLevel = "routine"
)

// TriageRequestType distinguishes what the patient is asking for.
type TriageRequestType string

const (
	TriageRequestCancel     TriageRequestType = "cancel"
	TriageRequestReschedule TriageRequestType = "reschedule"
)

// ComplianceQuestionnaire is the one-off self-assessment a patient submits
// at registration. Five 1-5 ratings contribute 60% of the score, four
// policy commitments 10 points each.
type ComplianceQuestionnaire struct {
	Base
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`

	MissedAppointmentsRating    int `db:"missed_appointments_rating" json:"missed_appointments_rating"`
	CancellationNoticeRating    int `db:"cancellation_notice_rating" json:"cancellation_notice_rating"`
	ScheduleImportanceRating    int `db:"schedule_importance_rating" json:"schedule_importance_rating"`
	RescheduleCommitmentRating  int `db:"reschedule_commitment_rating" json:"reschedule_commitment_rating"`
	FlexibilityRating           int `db:"flexibility_rating" json:"flexibility_rating"`

	Agrees24hCancellation          bool `db:"agrees_24h_cancellation" json:"agrees_24h_cancellation"`
	AgreesNoShowPenalty            bool `db:"agrees_no_show_penalty" json:"agrees_no_show_penalty"`
	AgreesReschedulePolicy         bool `db:"agrees_reschedule_policy" json:"agrees_reschedule_policy"`
	AgreesCommunicationPreferences bool `db:"agrees_communication_preferences" json:"agrees_communication_preferences"`

	CalculatedScore int     `db:"calculated_score" json:"calculated_score"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	IsComplete      bool    `db:"is_complete" json:"is_complete"`
	AdditionalNotes *string `db:"additional_notes" json:"additional_notes,omitempty"`
}

// CalculateScore derives the 0-100 compliance score and stores it on the
// questionnaire.
func (q *ComplianceQuestionnaire) CalculateScore() int {
	ratingsSum := q.MissedAppointmentsRating +
		q.CancellationNoticeRating +
		q.ScheduleImportanceRating +
		q.RescheduleCommitmentRating +
		q.FlexibilityRating
	ratingsScore := float64(ratingsSum) / 25 * 60

	commitmentsScore := 0
	for _, agreed := range []bool{
		q.Agrees24hCancellation,
		q.AgreesNoShowPenalty,
		q.AgreesReschedulePolicy,
		q.AgreesCommunicationPreferences,
	} {
		if agreed {
			commitmentsScore += 10
		}
	}

	q.CalculatedScore = int(ratingsScore) + commitmentsScore
	return q.CalculatedScore
}

type SubmitComplianceRequest struct {
	MissedAppointmentsRating   int `json:"missed_appointments_rating" binding:"required,min=1,max=5"`
	CancellationNoticeRating   int `json:"cancellation_notice_rating" binding:"required,min=1,max=5"`
	ScheduleImportanceRating   int `json:"schedule_importance_rating" binding:"required,min=1,max=5"`
	RescheduleCommitmentRating int `json:"reschedule_commitment_rating" binding:"required,min=1,max=5"`
	FlexibilityRating          int `json:"flexibility_rating" binding:"required,min=1,max=5"`

	Agrees24hCancellation          bool `json:"agrees_24h_cancellation"`
	AgreesNoShowPenalty            bool `json:"agrees_no_show_penalty"`
	AgreesReschedulePolicy         bool `json:"agrees_reschedule_policy"`
	AgreesCommunicationPreferences bool `json:"agrees_communication_preferences"`

	AdditionalNotes *string `json:"additional_notes" binding:"omitempty,max=2000"`
}

// TriageQuestionnaire gates cancellation and reschedule of a booking.
// IsApproved is tri-state: nil means pending doctor review.
type TriageQuestionnaire struct {
	Base
	BookingID   uuid.UUID         `db:"booking_id" json:"booking_id"`
	RequestType TriageRequestType `db:"request_type" json:"request_type"`

	ReasonCategory string  `db:"reason_category" json:"reason_category"`
	ReasonDetails  *string `db:"reason_details" json:"reason_details,omitempty"`

	ConditionChanged bool `db:"condition_changed" json:"condition_changed"`
	SymptomsWorsened bool `db:"symptoms_worsened" json:"symptoms_worsened"`
	NewSymptoms      bool `db:"new_symptoms" json:"new_symptoms"`

	AvailableWithinWeek bool    `db:"available_within_week" json:"available_within_week"`
	PreferredTimes      *string `db:"preferred_times" json:"preferred_times,omitempty"`

	AcknowledgesImpact      bool `db:"acknowledges_impact" json:"acknowledges_impact"`
	CommitsToNewAppointment bool `db:"commits_to_new_appointment" json:"commits_to_new_appointment"`

	UrgencyLevel         UrgencyLevel `db:"urgency_level" json:"urgency_level"`
	RequiresDoctorReview bool         `db:"requires_doctor_review" json:"requires_doctor_review"`

	IsApproved      *bool      `db:"is_approved" json:"is_approved"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

// CalculateUrgency derives the urgency level and whether a doctor must
// review before the request can proceed.
func (t *TriageQuestionnaire) CalculateUrgency() UrgencyLevel {
	switch {
	case t.SymptomsWorsened || t.NewSymptoms:
		t.UrgencyLevel = UrgencyUrgent
		t.RequiresDoctorReview = true
	case t.ConditionChanged:
		t.UrgencyLevel = UrgencyModerate
		t.RequiresDoctorReview = true
	default:
		t.UrgencyLevel = UrgencyRoutine
		t.RequiresDoctorReview = false
	}
	return t.UrgencyLevel
}

type SubmitTriageRequest struct {
	RequestType    TriageRequestType `json:"request_type" binding:"required,oneof=cancel reschedule"`
	ReasonCategory string            `json:"reason_category" binding:"required,oneof=work health family transport other"`
	ReasonDetails  *string           `json:"reason_details" binding:"omitempty,max=2000"`

	ConditionChanged bool `json:"condition_changed"`
	SymptomsWorsened bool `json:"symptoms_worsened"`
	NewSymptoms      bool `json:"new_symptoms"`

	AvailableWithinWeek bool    `json:"available_within_week"`
	PreferredTimes      *string `json:"preferred_times" binding:"omitempty,max=1000"`

	AcknowledgesImpact      bool `json:"acknowledges_impact"`
	CommitsToNewAppointment bool `json:"commits_to_new_appointment"`
}

type ReviewTriageRequest struct {
	Approve         bool    `json:"approve"`
	RejectionReason *string `json:"rejection_reason" binding:"omitempty,max=1000"`
}
