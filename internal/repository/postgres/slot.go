package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
)

const slotColumns = `
	id, doctor_id, start_time, end_time, duration_minutes, status, slot_type,
	is_priority_only, is_urgent_only, min_compliance_level,
	recurrence_group_id, is_recurring, created_at, updated_at
`

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	slot.ID = uuid.New()
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		slot.ID,
		slot.DoctorID,
		slot.StartTime,
		slot.EndTime,
		slot.DurationMinutes,
		slot.Status,
		slot.SlotType,
		slot.IsPriorityOnly,
		slot.IsUrgentOnly,
		slot.MinComplianceLevel,
		slot.RecurrenceGroupID,
		slot.IsRecurring,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *slotRepository) CreateBatch(ctx context.Context, slots []*model.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO slots (` + slotColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare slot insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, slot := range slots {
			slot.ID = uuid.New()
			slot.CreatedAt = now
			slot.UpdatedAt = now

			if _, err := stmt.ExecContext(ctx,
				slot.ID,
				slot.DoctorID,
				slot.StartTime,
				slot.EndTime,
				slot.DurationMinutes,
				slot.Status,
				slot.SlotType,
				slot.IsPriorityOnly,
				slot.IsUrgentOnly,
				slot.MinComplianceLevel,
				slot.RecurrenceGroupID,
				slot.IsRecurring,
				slot.CreatedAt,
				slot.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to create slot batch: %w", err)
			}
		}
		return nil
	})
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `SELECT` + slotColumns + `FROM slots WHERE id = $1`

	var slot model.Slot
	err := r.db.GetContext(ctx, &slot, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) List(ctx context.Context, filters *model.SlotFilters) ([]*model.Slot, error) {
	query := `SELECT` + slotColumns + `FROM slots WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.DoctorID != uuid.Nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, filters.DoctorID)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND start_time >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND start_time < $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.SlotType != "" {
			query += fmt.Sprintf(" AND slot_type = $%d", argCount)
			args = append(args, filters.SlotType)
			argCount++
		}
	}

	query += " ORDER BY start_time ASC"

	var slots []*model.Slot
	err := r.db.SelectContext(ctx, &slots, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) ListAvailable(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	query := `
		SELECT` + slotColumns + `
		FROM slots
		WHERE doctor_id = $1
		AND status = $2
		AND start_time >= $3
		AND start_time < $4
		ORDER BY start_time ASC
	`
	var slots []*model.Slot
	err := r.db.SelectContext(ctx, &slots, query, doctorID, model.SlotStatusAvailable, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list available slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) AvailableDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT date_trunc('day', start_time) AS day
		FROM slots
		WHERE doctor_id = $1
		AND status = $2
		AND start_time >= $3
		AND start_time < $4
		ORDER BY day ASC
	`
	var dates []time.Time
	err := r.db.SelectContext(ctx, &dates, query, doctorID, model.SlotStatusAvailable, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list available dates: %w", err)
	}
	return dates, nil
}

func (r *slotRepository) CountAvailability(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = $2) AS available,
			COUNT(*) FILTER (WHERE status != $5) AS total
		FROM slots
		WHERE doctor_id = $1
		AND start_time >= $3
		AND start_time < $4
	`
	var counts struct {
		Available int `db:"available"`
		Total     int `db:"total"`
	}
	err := r.db.GetContext(ctx, &counts, query,
		doctorID, model.SlotStatusAvailable, from, to, model.SlotStatusCancelled)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count slot availability: %w", err)
	}
	return counts.Available, counts.Total, nil
}

func (r *slotRepository) Block(ctx context.Context, doctorID, slotID uuid.UUID) error {
	query := `
		UPDATE slots
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		AND doctor_id = $3
		AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		model.SlotStatusBlocked, slotID, doctorID, model.SlotStatusAvailable)
	if err != nil {
		return fmt.Errorf("failed to block slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrSlotUnavailable
	}
	return nil
}

func (r *slotRepository) DeleteRecurrenceGroup(ctx context.Context, doctorID, groupID uuid.UUID) (int64, error) {
	// Booked slots in the group stay; only open slots can be removed.
	query := `
		DELETE FROM slots
		WHERE recurrence_group_id = $1
		AND doctor_id = $2
		AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, groupID, doctorID, model.SlotStatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recurrence group: %w", err)
	}
	return result.RowsAffected()
}

func (r *slotRepository) ReserveEarliest(ctx context.Context, doctorID uuid.UUID, from, to time.Time, count int) (int64, error) {
	if count <= 0 {
		return 0, nil
	}

	query := `
		UPDATE slots
		SET status = $1, is_urgent_only = TRUE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM slots
			WHERE doctor_id = $2
			AND status = $3
			AND start_time >= $4
			AND start_time < $5
			ORDER BY start_time ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.SlotStatusReserved, doctorID, model.SlotStatusAvailable, from, to, count)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve slots: %w", err)
	}
	return result.RowsAffected()
}

func (r *slotRepository) ReleaseReservedBefore(ctx context.Context, doctorID uuid.UUID, before time.Time) (int64, error) {
	query := `
		UPDATE slots
		SET status = $1, is_urgent_only = FALSE, updated_at = NOW()
		WHERE doctor_id = $2
		AND status = $3
		AND start_time <= $4
	`
	result, err := r.db.ExecContext(ctx, query,
		model.SlotStatusAvailable, doctorID, model.SlotStatusReserved, before)
	if err != nil {
		return 0, fmt.Errorf("failed to release reserved slots: %w", err)
	}
	return result.RowsAffected()
}
