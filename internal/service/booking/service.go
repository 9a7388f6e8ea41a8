package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
	"github.com/medbook/scheduling-api/internal/service/patient"
	"github.com/medbook/scheduling-api/internal/service/priority"
	"github.com/medbook/scheduling-api/pkg/clock"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
	"github.com/medbook/scheduling-api/pkg/metrics"
)

const minUrgencyReasonLen = 10

// Config carries the booking policy knobs.
type Config struct {
	LateCancellationHours int
	WindowDays            int
}

type Service struct {
	repo           repository.BookingRepository
	slots          repository.SlotRepository
	doctors        repository.DoctorRepository
	questionnaires repository.QuestionnaireRepository
	patients       *patient.Service
	priority       *priority.Service
	metrics        *metrics.Metrics
	clock          clock.Clock
	cfg            Config
}

func NewService(
	repo repository.BookingRepository,
	slots repository.SlotRepository,
	doctors repository.DoctorRepository,
	questionnaires repository.QuestionnaireRepository,
	patients *patient.Service,
	prioritySvc *priority.Service,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg Config,
) *Service {
	return &Service{
		repo:           repo,
		slots:          slots,
		doctors:        doctors,
		questionnaires: questionnaires,
		patients:       patients,
		priority:       prioritySvc,
		metrics:        m,
		clock:          clk,
		cfg:            cfg,
	}
}

func lifecycleEvent(eventType string, booking *model.Booking, slot *model.Slot) *model.OutboxEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id":   booking.ID,
		"patient_id":   booking.PatientID,
		"slot_id":      booking.SlotID,
		"doctor_id":    slot.DoctorID,
		"start_time":   slot.StartTime,
		"status":       booking.Status,
		"is_emergency": booking.IsEmergency,
	})
	return &model.OutboxEvent{EventType: eventType, Payload: payload}
}

func (s *Service) deny(reason, message string) error {
	s.metrics.BookingsDenied.WithLabelValues(reason).Inc()
	return apperrors.NewPolicyDenied(message)
}

// Create books a slot for the patient. Normal bookings are held to the
// patient's booking window and slot access rules; emergency bookings bypass
// the window but must land on emergency capacity with a stated reason.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error) {
	start := time.Now()
	defer func() {
		s.metrics.BookingLatency.Observe(time.Since(start).Seconds())
	}()

	pat, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	doc, err := s.doctors.Get(ctx, req.DoctorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	if !doc.IsActive {
		return nil, apperrors.NewValidation("doctor is not accepting bookings")
	}

	slot, err := s.slots.Get(ctx, req.SlotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("slot", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	if slot.DoctorID != req.DoctorID {
		return nil, apperrors.NewValidation("slot does not belong to the requested doctor")
	}

	if req.IsEmergency {
		if err := s.checkEmergency(req, slot); err != nil {
			return nil, err
		}
	} else {
		if err := s.checkWindow(ctx, pat, slot); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	booking := &model.Booking{
		PatientID:     patientID,
		SlotID:        req.SlotID,
		Status:        model.BookingStatusConfirmed,
		ConfirmedAt:   &now,
		Reason:        req.Reason,
		Notes:         req.Notes,
		IsEmergency:   req.IsEmergency,
		UrgencyReason: req.UrgencyReason,
	}

	event := lifecycleEvent(model.EventBookingCreated, booking, slot)
	if err := s.repo.CreateWithSlot(ctx, booking, event); err != nil {
		if errors.Is(err, repository.ErrSlotUnavailable) {
			s.metrics.BookingsDenied.WithLabelValues("slot_taken").Inc()
			return nil, apperrors.NewConflict("slot is no longer available", err)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	kind := "normal"
	if booking.IsEmergency {
		kind = "emergency"
	}
	s.metrics.BookingsCreated.WithLabelValues(kind).Inc()
	s.metrics.SlotsBooked.Inc()
	return booking, nil
}

func (s *Service) checkEmergency(req *model.CreateBookingRequest, slot *model.Slot) error {
	if req.UrgencyReason == nil || len(*req.UrgencyReason) < minUrgencyReasonLen {
		return apperrors.NewValidation(
			fmt.Sprintf("urgency reason of at least %d characters is required for emergency bookings", minUrgencyReasonLen))
	}
	if slot.SlotType != model.SlotTypeEmergency {
		return s.deny("not_emergency_slot", "emergency bookings can only use emergency slots")
	}
	return nil
}

func (s *Service) checkWindow(ctx context.Context, pat *model.Patient, slot *model.Slot) error {
	if slot.SlotType == model.SlotTypeEmergency {
		return s.deny("emergency_slot", "emergency slots are held for emergencies")
	}

	window, err := s.patients.GetNextBookingWindow(ctx, pat.ID, slot.DoctorID)
	if err != nil {
		return err
	}
	if window.HasActiveBooking {
		s.metrics.BookingsDenied.WithLabelValues("active_booking").Inc()
		return apperrors.NewConflict("an active booking already exists", nil)
	}
	if !window.CanBook {
		reason := "booking window is closed"
		if window.Reason != nil {
			reason = *window.Reason
		}
		return s.deny("window_closed", reason)
	}
	if window.EarliestDate != nil && slot.StartTime.Before(*window.EarliestDate) {
		return s.deny("too_early", fmt.Sprintf(
			"next visit is not due before %s", window.EarliestDate.Format("2006-01-02")))
	}
	if window.LatestDate != nil && slot.StartTime.After(*window.LatestDate) {
		return s.deny("beyond_window", fmt.Sprintf(
			"bookings are only accepted up to %s ahead", window.LatestDate.Format("2006-01-02")))
	}

	if ok, reason := s.priority.CanAccess(pat, slot); !ok {
		s.metrics.BookingsDenied.WithLabelValues("slot_restricted").Inc()
		return apperrors.NewForbidden(reason)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("booking", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (s *Service) List(ctx context.Context, filters *model.BookingFilters, page *model.Pagination) ([]*model.Booking, error) {
	bookings, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) getOwned(ctx context.Context, patientID, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PatientID != patientID {
		return nil, apperrors.NewForbidden("booking belongs to another patient")
	}
	return booking, nil
}

// getManaged loads a booking and verifies it sits in the doctor's calendar.
func (s *Service) getManaged(ctx context.Context, doctorID, bookingID uuid.UUID) (*model.Booking, *model.Slot, error) {
	booking, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	slot, err := s.slots.Get(ctx, booking.SlotID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get slot: %w", err)
	}
	if slot.DoctorID != doctorID {
		return nil, nil, apperrors.NewForbidden("booking belongs to another doctor")
	}
	return booking, slot, nil
}

// SubmitTriage records a cancel/reschedule request. Routine requests are
// approved on the spot; anything pointing at a change in the patient's
// condition waits for the doctor.
func (s *Service) SubmitTriage(ctx context.Context, patientID, bookingID uuid.UUID, req *model.SubmitTriageRequest) (*model.TriageQuestionnaire, error) {
	booking, err := s.getOwned(ctx, patientID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsCancellable() {
		return nil, apperrors.NewPolicyDenied("booking can no longer be changed")
	}

	if req.RequestType == model.TriageRequestReschedule {
		if err := s.checkAlternatives(ctx, booking); err != nil {
			return nil, err
		}
	}

	triage := &model.TriageQuestionnaire{
		BookingID:               bookingID,
		RequestType:             req.RequestType,
		ReasonCategory:          req.ReasonCategory,
		ReasonDetails:           req.ReasonDetails,
		ConditionChanged:        req.ConditionChanged,
		SymptomsWorsened:        req.SymptomsWorsened,
		NewSymptoms:             req.NewSymptoms,
		AvailableWithinWeek:     req.AvailableWithinWeek,
		PreferredTimes:          req.PreferredTimes,
		AcknowledgesImpact:      req.AcknowledgesImpact,
		CommitsToNewAppointment: req.CommitsToNewAppointment,
	}
	triage.CalculateUrgency()

	if !triage.RequiresDoctorReview {
		approved := true
		approver := "system"
		now := s.clock.Now()
		triage.IsApproved = &approved
		triage.ApprovedBy = &approver
		triage.ApprovedAt = &now
	}

	if err := s.questionnaires.CreateTriage(ctx, triage); err != nil {
		return nil, fmt.Errorf("failed to save triage: %w", err)
	}
	return triage, nil
}

// checkAlternatives refuses a reschedule request when the doctor has no
// other open slots to move to.
func (s *Service) checkAlternatives(ctx context.Context, booking *model.Booking) error {
	slot, err := s.slots.Get(ctx, booking.SlotID)
	if err != nil {
		return fmt.Errorf("failed to get slot: %w", err)
	}

	now := s.clock.Now()
	open, err := s.slots.ListAvailable(ctx, slot.DoctorID, now, now.AddDate(0, 0, s.cfg.WindowDays))
	if err != nil {
		return fmt.Errorf("failed to check alternatives: %w", err)
	}
	for _, candidate := range open {
		if candidate.SlotType != model.SlotTypeEmergency {
			return nil
		}
	}
	return apperrors.NewPolicyDenied("no alternative slots are available to reschedule to")
}

func (s *Service) ReviewTriage(ctx context.Context, doctorID, triageID uuid.UUID, req *model.ReviewTriageRequest) (*model.TriageQuestionnaire, error) {
	triage, err := s.questionnaires.GetTriage(ctx, triageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("triage request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get triage: %w", err)
	}

	if _, _, err := s.getManaged(ctx, doctorID, triage.BookingID); err != nil {
		return nil, err
	}
	if triage.IsApproved != nil {
		return nil, apperrors.NewConflict("triage request already reviewed", nil)
	}

	now := s.clock.Now()
	approver := doctorID.String()
	triage.IsApproved = &req.Approve
	triage.ApprovedBy = &approver
	triage.ApprovedAt = &now

	if !req.Approve {
		if req.RejectionReason == nil || *req.RejectionReason == "" {
			return nil, apperrors.NewValidation("rejection reason is required")
		}
		triage.RejectionReason = req.RejectionReason
	}

	if err := s.questionnaires.UpdateTriage(ctx, triage); err != nil {
		return nil, fmt.Errorf("failed to update triage: %w", err)
	}
	return triage, nil
}

func (s *Service) ListPendingTriage(ctx context.Context, doctorID uuid.UUID) ([]*model.TriageQuestionnaire, error) {
	list, err := s.questionnaires.ListPendingTriageForDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending triage: %w", err)
	}
	return list, nil
}

// approvedTriage loads the triage gate for a change to the booking and
// verifies it has cleared review.
func (s *Service) approvedTriage(ctx context.Context, booking *model.Booking, triageID uuid.UUID, requestType model.TriageRequestType) (*model.TriageQuestionnaire, error) {
	triage, err := s.questionnaires.GetTriage(ctx, triageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("triage request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get triage: %w", err)
	}

	if triage.BookingID != booking.ID {
		return nil, apperrors.NewValidation("triage request belongs to another booking")
	}
	if triage.RequestType != requestType {
		return nil, apperrors.NewValidation("triage request type does not match")
	}
	if triage.IsApproved == nil {
		return nil, apperrors.NewPolicyDenied("triage request is awaiting doctor review")
	}
	if !*triage.IsApproved {
		msg := "triage request was rejected"
		if triage.RejectionReason != nil {
			msg = fmt.Sprintf("triage request was rejected: %s", *triage.RejectionReason)
		}
		return nil, apperrors.NewPolicyDenied(msg)
	}
	return triage, nil
}

func (s *Service) isLateChange(slotStart time.Time) bool {
	cutoff := time.Duration(s.cfg.LateCancellationHours) * time.Hour
	return slotStart.Sub(s.clock.Now()) < cutoff
}

// Cancel ends a booking at the patient's request. The slot returns to the
// pool; a cancellation inside the notice window costs compliance.
func (s *Service) Cancel(ctx context.Context, patientID, bookingID uuid.UUID, req *model.CancelBookingRequest) (*model.Booking, error) {
	booking, err := s.getOwned(ctx, patientID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsCancellable() {
		return nil, apperrors.NewPolicyDenied("booking can no longer be cancelled")
	}

	triage, err := s.approvedTriage(ctx, booking, req.TriageID, model.TriageRequestCancel)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.Get(ctx, booking.SlotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	now := s.clock.Now()
	booking.Status = model.BookingStatusCancelledByPatient
	booking.CancelledAt = &now
	booking.CancellationReason = &triage.ReasonCategory

	event := lifecycleEvent(model.EventBookingCancelled, booking, slot)
	if err := s.repo.Cancel(ctx, booking, true, event); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if s.isLateChange(slot.StartTime) {
		if err := s.patients.RecordLateCancellation(ctx, patientID); err != nil {
			return nil, err
		}
	}

	s.metrics.BookingsCancelled.WithLabelValues("patient").Inc()
	return booking, nil
}

// CancelByDoctor ends a booking from the doctor's side. The patient's
// compliance is untouched.
func (s *Service) CancelByDoctor(ctx context.Context, doctorID, bookingID uuid.UUID, reason string) (*model.Booking, error) {
	booking, slot, err := s.getManaged(ctx, doctorID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsCancellable() {
		return nil, apperrors.NewPolicyDenied("booking can no longer be cancelled")
	}

	now := s.clock.Now()
	booking.Status = model.BookingStatusCancelledByDoctor
	booking.CancelledAt = &now
	if reason != "" {
		booking.CancellationReason = &reason
	}

	event := lifecycleEvent(model.EventBookingCancelled, booking, slot)
	if err := s.repo.Cancel(ctx, booking, true, event); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	s.metrics.BookingsCancelled.WithLabelValues("doctor").Inc()
	return booking, nil
}

// Reschedule moves an approved booking to a new slot with the same doctor.
// The old and new bookings reference each other.
func (s *Service) Reschedule(ctx context.Context, patientID, bookingID uuid.UUID, req *model.RescheduleBookingRequest) (*model.Booking, error) {
	booking, err := s.getOwned(ctx, patientID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsCancellable() {
		return nil, apperrors.NewPolicyDenied("booking can no longer be rescheduled")
	}

	triage, err := s.approvedTriage(ctx, booking, req.TriageID, model.TriageRequestReschedule)
	if err != nil {
		return nil, err
	}

	oldSlot, err := s.slots.Get(ctx, booking.SlotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	newSlot, err := s.slots.Get(ctx, req.NewSlotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("slot", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get new slot: %w", err)
	}
	if newSlot.DoctorID != oldSlot.DoctorID {
		return nil, apperrors.NewValidation("reschedule must stay with the same doctor")
	}
	if newSlot.SlotType == model.SlotTypeEmergency {
		return s.denyReschedule("emergency slots are held for emergencies")
	}

	pat, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if ok, reason := s.priority.CanAccess(pat, newSlot); !ok {
		return nil, apperrors.NewForbidden(reason)
	}

	now := s.clock.Now()
	replacement := &model.Booking{
		PatientID:         patientID,
		SlotID:            req.NewSlotID,
		Status:            model.BookingStatusConfirmed,
		ConfirmedAt:       &now,
		Reason:            booking.Reason,
		Notes:             booking.Notes,
		RescheduledFromID: &booking.ID,
	}
	replacement.ID = uuid.New()

	wasLate := s.isLateChange(oldSlot.StartTime)

	booking.Status = model.BookingStatusRescheduled
	booking.RescheduledToID = &replacement.ID
	booking.CancelledAt = &now
	booking.CancellationReason = &triage.ReasonCategory

	event := lifecycleEvent(model.EventBookingRescheduled, replacement, newSlot)
	if err := s.repo.Reschedule(ctx, booking, replacement, event); err != nil {
		if errors.Is(err, repository.ErrSlotUnavailable) {
			return nil, apperrors.NewConflict("slot is no longer available", err)
		}
		return nil, fmt.Errorf("failed to reschedule booking: %w", err)
	}

	if wasLate {
		if err := s.patients.RecordLateCancellation(ctx, patientID); err != nil {
			return nil, err
		}
	}

	s.metrics.BookingsCreated.WithLabelValues("reschedule").Inc()
	s.metrics.SlotsBooked.Inc()
	return replacement, nil
}

func (s *Service) denyReschedule(message string) (*model.Booking, error) {
	s.metrics.BookingsDenied.WithLabelValues("emergency_slot").Inc()
	return nil, apperrors.NewPolicyDenied(message)
}

// MarkNoShow records that the patient did not turn up. The slot stays
// booked; the capacity was spent either way.
func (s *Service) MarkNoShow(ctx context.Context, doctorID, bookingID uuid.UUID) (*model.Booking, error) {
	booking, slot, err := s.getManaged(ctx, doctorID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, apperrors.NewConflict("booking is not active", nil)
	}
	if slot.StartTime.After(s.clock.Now()) {
		return nil, apperrors.NewValidation("cannot mark a no-show before the appointment time")
	}

	booking.Status = model.BookingStatusNoShow

	event := lifecycleEvent(model.EventBookingNoShow, booking, slot)
	if err := s.repo.UpdateWithEvent(ctx, booking, event); err != nil {
		return nil, fmt.Errorf("failed to mark no-show: %w", err)
	}

	if err := s.patients.RecordNoShow(ctx, booking.PatientID); err != nil {
		return nil, err
	}
	return booking, nil
}

// MarkCompleted records an attended appointment.
func (s *Service) MarkCompleted(ctx context.Context, doctorID, bookingID uuid.UUID) (*model.Booking, error) {
	booking, slot, err := s.getManaged(ctx, doctorID, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, apperrors.NewConflict("booking is not active", nil)
	}

	booking.Status = model.BookingStatusCompleted

	event := lifecycleEvent(model.EventBookingCompleted, booking, slot)
	if err := s.repo.UpdateWithEvent(ctx, booking, event); err != nil {
		return nil, fmt.Errorf("failed to complete booking: %w", err)
	}

	if err := s.patients.RecordCompleted(ctx, booking.PatientID); err != nil {
		return nil, err
	}
	return booking, nil
}
