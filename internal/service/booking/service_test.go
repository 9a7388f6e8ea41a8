package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository/repositorytest"
	"github.com/medbook/scheduling-api/internal/service/patient"
	"github.com/medbook/scheduling-api/internal/service/priority"
	"github.com/medbook/scheduling-api/pkg/clock"
	apperrors "github.com/medbook/scheduling-api/pkg/errors"
	"github.com/medbook/scheduling-api/pkg/metrics"
	"github.com/medbook/scheduling-api/pkg/security"
)

var (
	baseTime    = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	testMetrics = metrics.NewMetrics("test", "booking")
)

type harness struct {
	store *repositorytest.Store
	clock *clock.Fixed
	svc   *Service
}

func newHarness() *harness {
	store := repositorytest.NewStore()
	clk := clock.NewFixed(baseTime)

	patientSvc := patient.NewService(
		store.Patients(), store.Doctors(), store.Bookings(), store.Questionnaires(),
		security.NewBcryptHasher(4), clk, 30,
	)
	prioritySvc := priority.NewService(
		store.Slots(), store.Bookings(), store.Patients(), clk, testMetrics, 30, time.Minute,
	)
	svc := NewService(
		store.Bookings(), store.Slots(), store.Doctors(), store.Questionnaires(),
		patientSvc, prioritySvc, testMetrics, clk,
		Config{LateCancellationHours: 24, WindowDays: 30},
	)
	return &harness{store: store, clock: clk, svc: svc}
}

func (h *harness) addPatient(category model.PatientCategory, score int) *model.Patient {
	p := &model.Patient{
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Ada",
		LastName:  "Nowak",
		Category:  category,
		IsActive:  true,
	}
	p.SetComplianceScore(score)
	return h.store.AddPatient(p)
}

func (h *harness) addDoctor() uuid.UUID {
	d := h.store.AddDoctor(&model.Doctor{
		Email:     uuid.NewString() + "@clinic.example.com",
		FirstName: "Maria",
		LastName:  "Kovacs",
		IsActive:  true,
	})
	return d.ID
}

func (h *harness) addSlot(doctorID uuid.UUID, start time.Time, slotType model.SlotType) *model.Slot {
	return h.store.AddSlot(&model.Slot{
		DoctorID:        doctorID,
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		Status:          model.SlotStatusAvailable,
		SlotType:        slotType,
	})
}

// book creates a confirmed normal booking directly in the store.
func (h *harness) book(patientID uuid.UUID, slot *model.Slot, status model.BookingStatus) *model.Booking {
	slot.Status = model.SlotStatusBooked
	return h.store.AddBooking(&model.Booking{
		PatientID: patientID,
		SlotID:    slot.ID,
		Status:    status,
	})
}

func (h *harness) approvedTriage(bookingID uuid.UUID, requestType model.TriageRequestType) *model.TriageQuestionnaire {
	approved := true
	approver := "system"
	now := baseTime
	return h.store.AddTriage(&model.TriageQuestionnaire{
		BookingID:      bookingID,
		RequestType:    requestType,
		ReasonCategory: "work",
		UrgencyLevel:   model.UrgencyRoutine,
		IsApproved:     &approved,
		ApprovedBy:     &approver,
		ApprovedAt:     &now,
	})
}

func TestCreateBooking(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)

	booking, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   slot.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
	require.NotNil(t, booking.ConfirmedAt)
	assert.Equal(t, baseTime, *booking.ConfirmedAt)
	assert.Equal(t, p.ID, booking.PatientID)
	assert.Equal(t, model.SlotStatusBooked, h.store.Slot(slot.ID).Status)

	events := h.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingCreated, events[0].EventType)
}

func TestCreateBookingSlotDoctorMismatch(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	slotOwner := h.addDoctor()
	requested := h.addDoctor()
	slot := h.addSlot(slotOwner, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: requested,
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestCreateBookingUnknownDoctor(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	slot := h.addSlot(h.addDoctor(), baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: uuid.New(),
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCreateBookingInactiveDoctor(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doc := h.store.AddDoctor(&model.Doctor{
		Email:     uuid.NewString() + "@clinic.example.com",
		FirstName: "Maria",
		LastName:  "Kovacs",
		IsActive:  false,
	})
	slot := h.addSlot(doc.ID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doc.ID,
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
	assert.Equal(t, model.SlotStatusAvailable, h.store.Slot(slot.ID).Status)
}

func TestCreateBookingHonoursDoctorWindow(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doc := h.store.AddDoctor(&model.Doctor{
		Email:             uuid.NewString() + "@clinic.example.com",
		FirstName:         "Maria",
		LastName:          "Kovacs",
		IsActive:          true,
		BookingWindowDays: 10,
	})

	// Inside the default 30 day window but past the doctor's own horizon.
	far := h.addSlot(doc.ID, baseTime.AddDate(0, 0, 15), model.SlotTypeFollowUp)
	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doc.ID,
		SlotID:   far.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))

	near := h.addSlot(doc.ID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doc.ID,
		SlotID:   near.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
}

func TestCreateBookingRefusesEmergencySlot(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeEmergency)

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))
	assert.Equal(t, model.SlotStatusAvailable, h.store.Slot(slot.ID).Status)
}

func TestCreateBookingBlockedByActiveBooking(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	existing := h.addSlot(doctorID, baseTime.AddDate(0, 0, 3), model.SlotTypeFollowUp)
	h.book(p.ID, existing, model.BookingStatusConfirmed)

	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestCreateBookingBeyondWindow(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 45), model.SlotTypeFollowUp)

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))
}

func TestCreateBookingBeforeNextDueDate(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryModerate, 50)
	doctorID := h.addDoctor()

	// Completed visit 20 days ago on a 30 day cadence: next due in 10 days.
	past := h.addSlot(doctorID, baseTime.AddDate(0, 0, -20), model.SlotTypeFollowUp)
	h.book(p.ID, past, model.BookingStatusCompleted)

	early := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   early.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))

	due := h.addSlot(doctorID, baseTime.AddDate(0, 0, 15), model.SlotTypeFollowUp)
	booking, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   due.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
}

func TestCreateBookingRestrictedSlot(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	slot.IsPriorityOnly = true

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID: doctorID,
		SlotID:   slot.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "slot reserved for high-compliance patients", appErr.Message)
}

func TestEmergencyBookingRequiresReason(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(4*time.Hour), model.SlotTypeEmergency)

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID:    doctorID,
		SlotID:      slot.ID,
		IsEmergency: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	short := "hurts"
	_, err = h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID:      doctorID,
		SlotID:        slot.ID,
		IsEmergency:   true,
		UrgencyReason: &short,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestEmergencyBookingBypassesWindow(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()

	// An active booking blocks normal bookings but not emergencies.
	existing := h.addSlot(doctorID, baseTime.AddDate(0, 0, 10), model.SlotTypeFollowUp)
	h.book(p.ID, existing, model.BookingStatusConfirmed)

	slot := h.addSlot(doctorID, baseTime.Add(4*time.Hour), model.SlotTypeEmergency)
	reason := "sudden severe chest pain"

	booking, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID:      doctorID,
		SlotID:        slot.ID,
		IsEmergency:   true,
		UrgencyReason: &reason,
	})
	require.NoError(t, err)
	assert.True(t, booking.IsEmergency)
	assert.Equal(t, model.SlotStatusBooked, h.store.Slot(slot.ID).Status)
}

func TestEmergencyBookingRefusesReservedSlot(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()

	slot := h.addSlot(doctorID, baseTime.Add(4*time.Hour), model.SlotTypeEmergency)
	slot.Status = model.SlotStatusReserved
	reason := "sudden severe chest pain"

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID:      doctorID,
		SlotID:        slot.ID,
		IsEmergency:   true,
		UrgencyReason: &reason,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	assert.Equal(t, model.SlotStatusReserved, h.store.Slot(slot.ID).Status)
}

func TestEmergencyBookingRefusesRegularSlot(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(4*time.Hour), model.SlotTypeFollowUp)
	reason := "sudden severe chest pain"

	_, err := h.svc.Create(context.Background(), p.ID, &model.CreateBookingRequest{
		DoctorID:      doctorID,
		SlotID:        slot.ID,
		IsEmergency:   true,
		UrgencyReason: &reason,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))
}

func TestConcurrentBookingOneWinner(t *testing.T) {
	h := newHarness()
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)

	const attempts = 8
	patients := make([]*model.Patient, attempts)
	for i := range patients {
		patients[i] = h.addPatient(model.CategoryStable, 50)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Create(context.Background(), patients[i].ID, &model.CreateBookingRequest{
				DoctorID: doctorID,
				SlotID:   slot.ID,
			})
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case apperrors.IsCode(err, apperrors.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, model.SlotStatusBooked, h.store.Slot(slot.ID).Status)
}

func TestSubmitTriageRoutineAutoApproved(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	triage, err := h.svc.SubmitTriage(context.Background(), p.ID, booking.ID, &model.SubmitTriageRequest{
		RequestType:    model.TriageRequestCancel,
		ReasonCategory: "work",
	})
	require.NoError(t, err)

	assert.Equal(t, model.UrgencyRoutine, triage.UrgencyLevel)
	assert.False(t, triage.RequiresDoctorReview)
	require.NotNil(t, triage.IsApproved)
	assert.True(t, *triage.IsApproved)
	require.NotNil(t, triage.ApprovedBy)
	assert.Equal(t, "system", *triage.ApprovedBy)
}

func TestSubmitTriageUrgentNeedsReview(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	triage, err := h.svc.SubmitTriage(context.Background(), p.ID, booking.ID, &model.SubmitTriageRequest{
		RequestType:      model.TriageRequestCancel,
		ReasonCategory:   "health",
		SymptomsWorsened: true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.UrgencyUrgent, triage.UrgencyLevel)
	assert.True(t, triage.RequiresDoctorReview)
	assert.Nil(t, triage.IsApproved)
}

func TestSubmitTriageRescheduleNeedsAlternatives(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	// Only emergency capacity open: nothing to reschedule to.
	h.addSlot(doctorID, baseTime.AddDate(0, 0, 6), model.SlotTypeEmergency)

	_, err := h.svc.SubmitTriage(context.Background(), p.ID, booking.ID, &model.SubmitTriageRequest{
		RequestType:    model.TriageRequestReschedule,
		ReasonCategory: "work",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))

	// An open follow-up slot unblocks the request.
	h.addSlot(doctorID, baseTime.AddDate(0, 0, 7), model.SlotTypeFollowUp)
	_, err = h.svc.SubmitTriage(context.Background(), p.ID, booking.ID, &model.SubmitTriageRequest{
		RequestType:    model.TriageRequestReschedule,
		ReasonCategory: "work",
	})
	assert.NoError(t, err)
}

func TestSubmitTriageOwnership(t *testing.T) {
	h := newHarness()
	owner := h.addPatient(model.CategoryStable, 50)
	other := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(owner.ID, slot, model.BookingStatusConfirmed)

	_, err := h.svc.SubmitTriage(context.Background(), other.ID, booking.ID, &model.SubmitTriageRequest{
		RequestType:    model.TriageRequestCancel,
		ReasonCategory: "work",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestReviewTriage(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	triage := h.store.AddTriage(&model.TriageQuestionnaire{
		BookingID:            booking.ID,
		RequestType:          model.TriageRequestCancel,
		ReasonCategory:       "health",
		UrgencyLevel:         model.UrgencyUrgent,
		RequiresDoctorReview: true,
	})

	// Rejection without a reason is refused.
	_, err := h.svc.ReviewTriage(context.Background(), doctorID, triage.ID, &model.ReviewTriageRequest{
		Approve: false,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	reviewed, err := h.svc.ReviewTriage(context.Background(), doctorID, triage.ID, &model.ReviewTriageRequest{
		Approve: true,
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed.IsApproved)
	assert.True(t, *reviewed.IsApproved)
	assert.Equal(t, doctorID.String(), *reviewed.ApprovedBy)

	// Second review of the same request is a conflict.
	_, err = h.svc.ReviewTriage(context.Background(), doctorID, triage.ID, &model.ReviewTriageRequest{
		Approve: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestReviewTriageWrongDoctor(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	triage := h.store.AddTriage(&model.TriageQuestionnaire{
		BookingID:            booking.ID,
		RequestType:          model.TriageRequestCancel,
		ReasonCategory:       "health",
		RequiresDoctorReview: true,
	})

	_, err := h.svc.ReviewTriage(context.Background(), uuid.New(), triage.ID, &model.ReviewTriageRequest{
		Approve: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestCancelReleasesSlot(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)
	triage := h.approvedTriage(booking.ID, model.TriageRequestCancel)

	cancelled, err := h.svc.Cancel(context.Background(), p.ID, booking.ID, &model.CancelBookingRequest{
		TriageID: triage.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusCancelledByPatient, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, model.SlotStatusAvailable, h.store.Slot(slot.ID).Status)

	// Five days of notice: compliance untouched.
	after := h.store.Patient(p.ID)
	assert.Equal(t, 50, after.ComplianceScore)
	assert.Equal(t, 0, after.LateCancellations)
}

func TestLateCancellationCostsCompliance(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	p.TotalAppointments = 2
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(6*time.Hour), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)
	triage := h.approvedTriage(booking.ID, model.TriageRequestCancel)

	_, err := h.svc.Cancel(context.Background(), p.ID, booking.ID, &model.CancelBookingRequest{
		TriageID: triage.ID,
	})
	require.NoError(t, err)

	after := h.store.Patient(p.ID)
	assert.Equal(t, 1, after.LateCancellations)
	assert.Equal(t, 49, after.ComplianceScore)
}

func TestCancelRequiresApprovedTriage(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	// Pending review.
	pending := h.store.AddTriage(&model.TriageQuestionnaire{
		BookingID:            booking.ID,
		RequestType:          model.TriageRequestCancel,
		ReasonCategory:       "health",
		RequiresDoctorReview: true,
	})
	_, err := h.svc.Cancel(context.Background(), p.ID, booking.ID, &model.CancelBookingRequest{
		TriageID: pending.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))

	// Rejected.
	rejected := false
	reason := "appointment is medically necessary"
	denied := h.store.AddTriage(&model.TriageQuestionnaire{
		BookingID:       booking.ID,
		RequestType:     model.TriageRequestCancel,
		ReasonCategory:  "work",
		IsApproved:      &rejected,
		RejectionReason: &reason,
	})
	_, err = h.svc.Cancel(context.Background(), p.ID, booking.ID, &model.CancelBookingRequest{
		TriageID: denied.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))

	// Wrong request type.
	wrongType := h.approvedTriage(booking.ID, model.TriageRequestReschedule)
	_, err = h.svc.Cancel(context.Background(), p.ID, booking.ID, &model.CancelBookingRequest{
		TriageID: wrongType.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	// The booking is untouched throughout.
	assert.Equal(t, model.BookingStatusConfirmed, h.store.Booking(booking.ID).Status)
}

func TestCancelByDoctorSparesCompliance(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(6*time.Hour), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	cancelled, err := h.svc.CancelByDoctor(context.Background(), doctorID, booking.ID, "clinic closed")
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusCancelledByDoctor, cancelled.Status)
	assert.Equal(t, model.SlotStatusAvailable, h.store.Slot(slot.ID).Status)

	// Even inside the notice window the patient is not penalised.
	after := h.store.Patient(p.ID)
	assert.Equal(t, 50, after.ComplianceScore)
	assert.Equal(t, 0, after.LateCancellations)
}

func TestReschedule(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	oldSlot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, oldSlot, model.BookingStatusConfirmed)
	newSlot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 8), model.SlotTypeFollowUp)
	triage := h.approvedTriage(booking.ID, model.TriageRequestReschedule)

	replacement, err := h.svc.Reschedule(context.Background(), p.ID, booking.ID, &model.RescheduleBookingRequest{
		NewSlotID: newSlot.ID,
		TriageID:  triage.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusConfirmed, replacement.Status)
	require.NotNil(t, replacement.ConfirmedAt)
	assert.Equal(t, newSlot.ID, replacement.SlotID)
	require.NotNil(t, replacement.RescheduledFromID)
	assert.Equal(t, booking.ID, *replacement.RescheduledFromID)

	old := h.store.Booking(booking.ID)
	assert.Equal(t, model.BookingStatusRescheduled, old.Status)
	require.NotNil(t, old.RescheduledToID)
	assert.Equal(t, replacement.ID, *old.RescheduledToID)

	assert.Equal(t, model.SlotStatusAvailable, h.store.Slot(oldSlot.ID).Status)
	assert.Equal(t, model.SlotStatusBooked, h.store.Slot(newSlot.ID).Status)
}

func TestRescheduleMustKeepDoctor(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	oldSlot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, oldSlot, model.BookingStatusConfirmed)
	otherDoctorSlot := h.addSlot(uuid.New(), baseTime.AddDate(0, 0, 8), model.SlotTypeFollowUp)
	triage := h.approvedTriage(booking.ID, model.TriageRequestReschedule)

	_, err := h.svc.Reschedule(context.Background(), p.ID, booking.ID, &model.RescheduleBookingRequest{
		NewSlotID: otherDoctorSlot.ID,
		TriageID:  triage.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestRescheduleRefusesEmergencySlot(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	oldSlot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, oldSlot, model.BookingStatusConfirmed)
	emergency := h.addSlot(doctorID, baseTime.AddDate(0, 0, 8), model.SlotTypeEmergency)
	triage := h.approvedTriage(booking.ID, model.TriageRequestReschedule)

	_, err := h.svc.Reschedule(context.Background(), p.ID, booking.ID, &model.RescheduleBookingRequest{
		NewSlotID: emergency.ID,
		TriageID:  triage.ID,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPolicyDenied))
}

func TestLateRescheduleCountsAsLateCancellation(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	p.TotalAppointments = 2
	doctorID := h.addDoctor()
	oldSlot := h.addSlot(doctorID, baseTime.Add(6*time.Hour), model.SlotTypeFollowUp)
	booking := h.book(p.ID, oldSlot, model.BookingStatusConfirmed)
	newSlot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 8), model.SlotTypeFollowUp)
	triage := h.approvedTriage(booking.ID, model.TriageRequestReschedule)

	_, err := h.svc.Reschedule(context.Background(), p.ID, booking.ID, &model.RescheduleBookingRequest{
		NewSlotID: newSlot.ID,
		TriageID:  triage.ID,
	})
	require.NoError(t, err)

	after := h.store.Patient(p.ID)
	assert.Equal(t, 1, after.LateCancellations)
	assert.Equal(t, 49, after.ComplianceScore)
}

func TestMarkNoShowLeavesSlotBooked(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(time.Hour), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	// Too early: the appointment has not happened yet.
	_, err := h.svc.MarkNoShow(context.Background(), doctorID, booking.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	h.clock.Advance(2 * time.Hour)

	marked, err := h.svc.MarkNoShow(context.Background(), doctorID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusNoShow, marked.Status)

	// The hour was spent whether or not the patient turned up.
	assert.Equal(t, model.SlotStatusBooked, h.store.Slot(slot.ID).Status)

	after := h.store.Patient(p.ID)
	assert.Equal(t, 1, after.NoShows)
	assert.Equal(t, 40, after.ComplianceScore)
}

func TestMarkCompleted(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(time.Hour), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	completed, err := h.svc.MarkCompleted(context.Background(), doctorID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, completed.Status)

	after := h.store.Patient(p.ID)
	assert.Equal(t, 1, after.TotalAppointments)
	assert.Equal(t, 52, after.ComplianceScore)

	// Terminal states accept no further transitions.
	_, err = h.svc.MarkNoShow(context.Background(), doctorID, booking.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestManagedBookingWrongDoctor(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.Add(time.Hour), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	_, err := h.svc.MarkCompleted(context.Background(), uuid.New(), booking.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
	assert.Equal(t, model.BookingStatusConfirmed, h.store.Booking(booking.ID).Status)
}

func TestListPendingTriage(t *testing.T) {
	h := newHarness()
	p := h.addPatient(model.CategoryStable, 50)
	doctorID := h.addDoctor()
	slot := h.addSlot(doctorID, baseTime.AddDate(0, 0, 5), model.SlotTypeFollowUp)
	booking := h.book(p.ID, slot, model.BookingStatusConfirmed)

	_, err := h.svc.SubmitTriage(context.Background(), p.ID, booking.ID, &model.SubmitTriageRequest{
		RequestType:      model.TriageRequestCancel,
		ReasonCategory:   "health",
		SymptomsWorsened: true,
	})
	require.NoError(t, err)

	pending, err := h.svc.ListPendingTriage(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, booking.ID, pending[0].BookingID)

	other, err := h.svc.ListPendingTriage(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
