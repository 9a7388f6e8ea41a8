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

const bookingColumns = `
	id, patient_id, slot_id, status, reason, notes,
	is_emergency, urgency_reason,
	cancelled_at, cancellation_reason,
	rescheduled_from_id, rescheduled_to_id,
	confirmed_at, created_at, updated_at
`

// bookSlotTx flips the slot to booked, failing when someone else got there
// first. Only available slots can be claimed.
func bookSlotTx(ctx context.Context, tx *sqlx.Tx, slotID uuid.UUID) error {
	query := `
		UPDATE slots
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		AND status = $3
	`

	result, err := tx.ExecContext(ctx, query, model.SlotStatusBooked, slotID, model.SlotStatusAvailable)
	if err != nil {
		return fmt.Errorf("failed to book slot: %w", err)
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

func releaseSlotTx(ctx context.Context, tx *sqlx.Tx, slotID uuid.UUID) error {
	query := `
		UPDATE slots
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		AND status = $3
	`
	_, err := tx.ExecContext(ctx, query, model.SlotStatusAvailable, slotID, model.SlotStatusBooked)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

func insertBookingTx(ctx context.Context, tx *sqlx.Tx, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	_, err := tx.ExecContext(ctx, query,
		booking.ID,
		booking.PatientID,
		booking.SlotID,
		booking.Status,
		booking.Reason,
		booking.Notes,
		booking.IsEmergency,
		booking.UrgencyReason,
		booking.CancelledAt,
		booking.CancellationReason,
		booking.RescheduledFromID,
		booking.RescheduledToID,
		booking.ConfirmedAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func updateBookingTx(ctx context.Context, tx *sqlx.Tx, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, reason = $2, notes = $3,
			cancelled_at = $4, cancellation_reason = $5,
			rescheduled_from_id = $6, rescheduled_to_id = $7,
			confirmed_at = $8, updated_at = $9
		WHERE id = $10
	`
	booking.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		booking.Status,
		booking.Reason,
		booking.Notes,
		booking.CancelledAt,
		booking.CancellationReason,
		booking.RescheduledFromID,
		booking.RescheduledToID,
		booking.ConfirmedAt,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
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

func (r *bookingRepository) CreateWithSlot(ctx context.Context, booking *model.Booking, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := bookSlotTx(ctx, tx, booking.SlotID); err != nil {
			return err
		}
		if err := insertBookingTx(ctx, tx, booking); err != nil {
			return err
		}
		return insertOutboxEventTx(ctx, tx, event)
	})
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT` + bookingColumns + `FROM bookings WHERE id = $1`

	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters, page *model.Pagination) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.patient_id, b.slot_id, b.status, b.reason, b.notes,
			   b.is_emergency, b.urgency_reason,
			   b.cancelled_at, b.cancellation_reason,
			   b.rescheduled_from_id, b.rescheduled_to_id,
			   b.confirmed_at, b.created_at, b.updated_at
		FROM bookings b
		JOIN slots s ON s.id = b.slot_id
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND b.patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.DoctorID != uuid.Nil {
			query += fmt.Sprintf(" AND s.doctor_id = $%d", argCount)
			args = append(args, filters.DoctorID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND b.status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND s.start_time >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND s.start_time < $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
		if !filters.IncludePast {
			query += " AND s.start_time >= NOW()"
		}
	}

	query += " ORDER BY s.start_time ASC"

	if page != nil {
		page.Normalize()
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, page.PageSize, page.Offset())
	}

	var bookings []*model.Booking
	err := r.db.SelectContext(ctx, &bookings, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) GetActiveForPatient(ctx context.Context, patientID uuid.UUID) (*model.Booking, error) {
	query := `
		SELECT` + bookingColumns + `
		FROM bookings
		WHERE patient_id = $1
		AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, query,
		patientID, model.BookingStatusPending, model.BookingStatusConfirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) LastCompletedSlotStart(ctx context.Context, patientID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT s.start_time
		FROM bookings b
		JOIN slots s ON s.id = b.slot_id
		WHERE b.patient_id = $1
		AND b.status = $2
		ORDER BY s.start_time DESC
		LIMIT 1
	`
	var start time.Time
	err := r.db.GetContext(ctx, &start, query, patientID, model.BookingStatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last completed visit: %w", err)
	}
	return &start, nil
}

func (r *bookingRepository) Cancel(ctx context.Context, booking *model.Booking, releaseSlot bool, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateBookingTx(ctx, tx, booking); err != nil {
			return err
		}
		if releaseSlot {
			if err := releaseSlotTx(ctx, tx, booking.SlotID); err != nil {
				return err
			}
		}
		return insertOutboxEventTx(ctx, tx, event)
	})
}

func (r *bookingRepository) UpdateWithEvent(ctx context.Context, booking *model.Booking, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateBookingTx(ctx, tx, booking); err != nil {
			return err
		}
		return insertOutboxEventTx(ctx, tx, event)
	})
}

// Reschedule moves a booking to a new slot atomically. The caller links the
// two bookings before the call; both sides of the link commit together.
func (r *bookingRepository) Reschedule(ctx context.Context, old, replacement *model.Booking, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := bookSlotTx(ctx, tx, replacement.SlotID); err != nil {
			return err
		}
		if err := insertBookingTx(ctx, tx, replacement); err != nil {
			return err
		}
		if err := updateBookingTx(ctx, tx, old); err != nil {
			return err
		}
		if err := releaseSlotTx(ctx, tx, old.SlotID); err != nil {
			return err
		}
		return insertOutboxEventTx(ctx, tx, event)
	})
}

