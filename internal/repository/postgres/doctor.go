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

// doctorRow flattens the slot distribution into scannable columns.
type doctorRow struct {
	model.Doctor
	DistFirstVisit int `db:"dist_first_visit"`
	DistFollowUp   int `db:"dist_follow_up"`
	DistEmergency  int `db:"dist_emergency"`
}

func (row *doctorRow) toModel() *model.Doctor {
	d := row.Doctor
	d.SlotDistribution = model.SlotDistribution{
		FirstVisit: row.DistFirstVisit,
		FollowUp:   row.DistFollowUp,
		Emergency:  row.DistEmergency,
	}
	return &d
}

const doctorColumns = `
	id, email, password_hash, first_name, last_name, phone,
	specialisation, licence_number, bio,
	default_slot_duration_minutes, booking_window_days, max_daily_appointments,
	dist_first_visit, dist_follow_up, dist_emergency,
	auto_generate_days, is_active, created_at, updated_at
`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	doctor.ID = uuid.New()
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.Email,
		doctor.PasswordHash,
		doctor.FirstName,
		doctor.LastName,
		doctor.Phone,
		doctor.Specialisation,
		doctor.LicenceNumber,
		doctor.Bio,
		doctor.DefaultSlotDurationMinutes,
		doctor.BookingWindowDays,
		doctor.MaxDailyAppointments,
		doctor.SlotDistribution.FirstVisit,
		doctor.SlotDistribution.FollowUp,
		doctor.SlotDistribution.Emergency,
		doctor.AutoGenerateDays,
		doctor.IsActive,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT` + doctorColumns + `FROM doctors WHERE id = $1`

	var row doctorRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return row.toModel(), nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	query := `SELECT` + doctorColumns + `FROM doctors WHERE email = $1`

	var row doctorRow
	err := r.db.GetContext(ctx, &row, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor by email: %w", err)
	}
	return row.toModel(), nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET first_name = $1, last_name = $2, phone = $3,
			specialisation = $4, licence_number = $5, bio = $6,
			default_slot_duration_minutes = $7, booking_window_days = $8,
			max_daily_appointments = $9,
			dist_first_visit = $10, dist_follow_up = $11, dist_emergency = $12,
			auto_generate_days = $13, is_active = $14, updated_at = $15
		WHERE id = $16
	`
	doctor.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		doctor.FirstName,
		doctor.LastName,
		doctor.Phone,
		doctor.Specialisation,
		doctor.LicenceNumber,
		doctor.Bio,
		doctor.DefaultSlotDurationMinutes,
		doctor.BookingWindowDays,
		doctor.MaxDailyAppointments,
		doctor.SlotDistribution.FirstVisit,
		doctor.SlotDistribution.FollowUp,
		doctor.SlotDistribution.Emergency,
		doctor.AutoGenerateDays,
		doctor.IsActive,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
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

func (r *doctorRepository) List(ctx context.Context, page *model.Pagination) ([]*model.Doctor, error) {
	query := `SELECT` + doctorColumns + `FROM doctors WHERE is_active = true ORDER BY last_name ASC, first_name ASC`
	args := []interface{}{}

	if page != nil {
		page.Normalize()
		query += " LIMIT $1 OFFSET $2"
		args = append(args, page.PageSize, page.Offset())
	}

	var rows []*doctorRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	doctors := make([]*model.Doctor, 0, len(rows))
	for _, row := range rows {
		doctors = append(doctors, row.toModel())
	}
	return doctors, nil
}
