package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
)

const uniqueViolation = "23505"

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, email, password_hash, first_name, last_name, phone, date_of_birth,
			category, notes, compliance_level, compliance_score,
			total_appointments, no_shows, late_cancellations,
			primary_doctor_id, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Email,
		patient.PasswordHash,
		patient.FirstName,
		patient.LastName,
		patient.Phone,
		patient.DateOfBirth,
		patient.Category,
		patient.Notes,
		patient.ComplianceLevel,
		patient.ComplianceScore,
		patient.TotalAppointments,
		patient.NoShows,
		patient.LateCancellations,
		patient.PrimaryDoctorID,
		patient.IsActive,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

const patientColumns = `
	id, email, password_hash, first_name, last_name, phone, date_of_birth,
	category, notes, compliance_level, compliance_score,
	total_appointments, no_shows, late_cancellations,
	primary_doctor_id, is_active, created_at, updated_at
`

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT` + patientColumns + `FROM patients WHERE id = $1`

	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	query := `SELECT` + patientColumns + `FROM patients WHERE email = $1`

	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by email: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, phone = $3, category = $4, notes = $5,
			compliance_level = $6, compliance_score = $7,
			total_appointments = $8, no_shows = $9, late_cancellations = $10,
			primary_doctor_id = $11, is_active = $12, updated_at = $13
		WHERE id = $14
	`
	patient.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.Phone,
		patient.Category,
		patient.Notes,
		patient.ComplianceLevel,
		patient.ComplianceScore,
		patient.TotalAppointments,
		patient.NoShows,
		patient.LateCancellations,
		patient.PrimaryDoctorID,
		patient.IsActive,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
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

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters, page *model.Pagination) ([]*model.Patient, error) {
	query := `SELECT` + patientColumns + `FROM patients WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.Category != "" {
			query += fmt.Sprintf(" AND category = $%d", argCount)
			args = append(args, filters.Category)
			argCount++
		}
		if filters.Level != "" {
			query += fmt.Sprintf(" AND compliance_level = $%d", argCount)
			args = append(args, filters.Level)
			argCount++
		}
		if filters.IsActive != nil {
			query += fmt.Sprintf(" AND is_active = $%d", argCount)
			args = append(args, *filters.IsActive)
			argCount++
		}
	}

	query += " ORDER BY last_name ASC, first_name ASC"

	if page != nil {
		page.Normalize()
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, page.PageSize, page.Offset())
	}

	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
