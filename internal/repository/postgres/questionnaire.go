package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
)

func (r *questionnaireRepository) CreateCompliance(ctx context.Context, q *model.ComplianceQuestionnaire) error {
	query := `
		INSERT INTO compliance_questionnaires (
			id, patient_id,
			missed_appointments_rating, cancellation_notice_rating,
			schedule_importance_rating, reschedule_commitment_rating, flexibility_rating,
			agrees_24h_cancellation, agrees_no_show_penalty,
			agrees_reschedule_policy, agrees_communication_preferences,
			calculated_score, completed_at, is_complete, additional_notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		q.ID,
		q.PatientID,
		q.MissedAppointmentsRating,
		q.CancellationNoticeRating,
		q.ScheduleImportanceRating,
		q.RescheduleCommitmentRating,
		q.FlexibilityRating,
		q.Agrees24hCancellation,
		q.AgreesNoShowPenalty,
		q.AgreesReschedulePolicy,
		q.AgreesCommunicationPreferences,
		q.CalculatedScore,
		q.CompletedAt,
		q.IsComplete,
		q.AdditionalNotes,
		q.CreatedAt,
		q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create compliance questionnaire: %w", err)
	}
	return nil
}

func (r *questionnaireRepository) GetComplianceByPatient(ctx context.Context, patientID uuid.UUID) (*model.ComplianceQuestionnaire, error) {
	query := `
		SELECT id, patient_id,
			   missed_appointments_rating, cancellation_notice_rating,
			   schedule_importance_rating, reschedule_commitment_rating, flexibility_rating,
			   agrees_24h_cancellation, agrees_no_show_penalty,
			   agrees_reschedule_policy, agrees_communication_preferences,
			   calculated_score, completed_at, is_complete, additional_notes,
			   created_at, updated_at
		FROM compliance_questionnaires
		WHERE patient_id = $1
	`
	var q model.ComplianceQuestionnaire
	err := r.db.GetContext(ctx, &q, query, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compliance questionnaire: %w", err)
	}
	return &q, nil
}

const triageColumns = `
	id, booking_id, request_type, reason_category, reason_details,
	condition_changed, symptoms_worsened, new_symptoms,
	available_within_week, preferred_times,
	acknowledges_impact, commits_to_new_appointment,
	urgency_level, requires_doctor_review,
	is_approved, approved_by, approved_at, rejection_reason,
	created_at, updated_at
`

func (r *questionnaireRepository) CreateTriage(ctx context.Context, q *model.TriageQuestionnaire) error {
	query := `
		INSERT INTO triage_questionnaires (` + triageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		q.ID,
		q.BookingID,
		q.RequestType,
		q.ReasonCategory,
		q.ReasonDetails,
		q.ConditionChanged,
		q.SymptomsWorsened,
		q.NewSymptoms,
		q.AvailableWithinWeek,
		q.PreferredTimes,
		q.AcknowledgesImpact,
		q.CommitsToNewAppointment,
		q.UrgencyLevel,
		q.RequiresDoctorReview,
		q.IsApproved,
		q.ApprovedBy,
		q.ApprovedAt,
		q.RejectionReason,
		q.CreatedAt,
		q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create triage questionnaire: %w", err)
	}
	return nil
}

func (r *questionnaireRepository) GetTriage(ctx context.Context, id uuid.UUID) (*model.TriageQuestionnaire, error) {
	query := `SELECT` + triageColumns + `FROM triage_questionnaires WHERE id = $1`

	var q model.TriageQuestionnaire
	err := r.db.GetContext(ctx, &q, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get triage questionnaire: %w", err)
	}
	return &q, nil
}

func (r *questionnaireRepository) UpdateTriage(ctx context.Context, q *model.TriageQuestionnaire) error {
	query := `
		UPDATE triage_questionnaires
		SET urgency_level = $1, requires_doctor_review = $2,
			is_approved = $3, approved_by = $4, approved_at = $5,
			rejection_reason = $6, updated_at = $7
		WHERE id = $8
	`
	q.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		q.UrgencyLevel,
		q.RequiresDoctorReview,
		q.IsApproved,
		q.ApprovedBy,
		q.ApprovedAt,
		q.RejectionReason,
		q.UpdatedAt,
		q.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update triage questionnaire: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *questionnaireRepository) ListPendingTriageForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.TriageQuestionnaire, error) {
	query := `
		SELECT t.id, t.booking_id, t.request_type, t.reason_category, t.reason_details,
			   t.condition_changed, t.symptoms_worsened, t.new_symptoms,
			   t.available_within_week, t.preferred_times,
			   t.acknowledges_impact, t.commits_to_new_appointment,
			   t.urgency_level, t.requires_doctor_review,
			   t.is_approved, t.approved_by, t.approved_at, t.rejection_reason,
			   t.created_at, t.updated_at
		FROM triage_questionnaires t
		JOIN bookings b ON b.id = t.booking_id
		JOIN slots s ON s.id = b.slot_id
		WHERE s.doctor_id = $1
		AND t.requires_doctor_review = true
		AND t.is_approved IS NULL
		ORDER BY t.created_at ASC
	`
	var list []*model.TriageQuestionnaire
	err := r.db.SelectContext(ctx, &list, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending triage questionnaires: %w", err)
	}
	return list, nil
}
