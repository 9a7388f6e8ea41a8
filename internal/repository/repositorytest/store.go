// Package repositorytest provides in-memory repository implementations for
// service tests. All operations are guarded by one mutex so concurrent
// booking attempts behave like they would against the database.
package repositorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/repository"
)

type Store struct {
	mu sync.Mutex

	patients   map[uuid.UUID]*model.Patient
	doctors    map[uuid.UUID]*model.Doctor
	slots      map[uuid.UUID]*model.Slot
	bookings   map[uuid.UUID]*model.Booking
	compliance map[uuid.UUID]*model.ComplianceQuestionnaire
	triage     map[uuid.UUID]*model.TriageQuestionnaire
	events     []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		patients:   make(map[uuid.UUID]*model.Patient),
		doctors:    make(map[uuid.UUID]*model.Doctor),
		slots:      make(map[uuid.UUID]*model.Slot),
		bookings:   make(map[uuid.UUID]*model.Booking),
		compliance: make(map[uuid.UUID]*model.ComplianceQuestionnaire),
		triage:     make(map[uuid.UUID]*model.TriageQuestionnaire),
	}
}

func (s *Store) Patients() repository.PatientRepository             { return &patientRepo{s} }
func (s *Store) Doctors() repository.DoctorRepository               { return &doctorRepo{s} }
func (s *Store) Slots() repository.SlotRepository                   { return &slotRepo{s} }
func (s *Store) Bookings() repository.BookingRepository             { return &bookingRepo{s} }
func (s *Store) Questionnaires() repository.QuestionnaireRepository { return &questionnaireRepo{s} }

// Seed helpers assign an id when the caller did not.

func (s *Store) AddPatient(p *model.Patient) *model.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.patients[p.ID] = p
	return p
}

func (s *Store) AddDoctor(d *model.Doctor) *model.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.doctors[d.ID] = d
	return d
}

func (s *Store) AddSlot(slot *model.Slot) *model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = model.SlotStatusAvailable
	}
	s.slots[slot.ID] = slot
	return slot
}

func (s *Store) AddBooking(b *model.Booking) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.bookings[b.ID] = b
	return b
}

func (s *Store) AddTriage(t *model.TriageQuestionnaire) *model.TriageQuestionnaire {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.triage[t.ID] = t
	return t
}

func (s *Store) Slot(id uuid.UUID) *model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id]
}

func (s *Store) Booking(id uuid.UUID) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *Store) Patient(id uuid.UUID) *model.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patients[id]
}

// Events returns the lifecycle events written alongside booking changes.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) recordEvent(event *model.OutboxEvent) {
	if event == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	s.events = append(s.events, event)
}

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.patients {
		if existing.Email == p.Email {
			return repository.ErrDuplicateEmail
		}
	}
	p.ID = uuid.New()
	r.s.patients[p.ID] = p
	return nil
}

func (r *patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *patientRepo) GetByEmail(_ context.Context, email string) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if p.Email == email {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *patientRepo) Update(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[p.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *p
	r.s.patients[p.ID] = &clone
	return nil
}

func (r *patientRepo) List(_ context.Context, filters *model.PatientFilters, page *model.Pagination) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Patient
	for _, p := range r.s.patients {
		if filters != nil {
			if filters.Category != "" && p.Category != filters.Category {
				continue
			}
			if filters.Level != "" && p.ComplianceLevel != filters.Level {
				continue
			}
			if filters.IsActive != nil && p.IsActive != *filters.IsActive {
				continue
			}
		}
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type doctorRepo struct{ s *Store }

func (r *doctorRepo) Create(_ context.Context, d *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.doctors {
		if existing.Email == d.Email {
			return repository.ErrDuplicateEmail
		}
	}
	d.ID = uuid.New()
	r.s.doctors[d.ID] = d
	return nil
}

func (r *doctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *doctorRepo) GetByEmail(_ context.Context, email string) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.doctors {
		if d.Email == email {
			clone := *d
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *doctorRepo) Update(_ context.Context, d *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.doctors[d.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *d
	r.s.doctors[d.ID] = &clone
	return nil
}

func (r *doctorRepo) List(_ context.Context, _ *model.Pagination) ([]*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Doctor
	for _, d := range r.s.doctors {
		clone := *d
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type slotRepo struct{ s *Store }

func (r *slotRepo) Create(_ context.Context, slot *model.Slot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot.ID = uuid.New()
	r.s.slots[slot.ID] = slot
	return nil
}

func (r *slotRepo) CreateBatch(_ context.Context, slots []*model.Slot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, slot := range slots {
		slot.ID = uuid.New()
		r.s.slots[slot.ID] = slot
	}
	return nil
}

func (r *slotRepo) Get(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *slot
	return &clone, nil
}

func (r *slotRepo) List(_ context.Context, filters *model.SlotFilters) ([]*model.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Slot
	for _, slot := range r.s.slots {
		if filters != nil {
			if filters.DoctorID != uuid.Nil && slot.DoctorID != filters.DoctorID {
				continue
			}
			if !filters.StartDate.IsZero() && slot.StartTime.Before(filters.StartDate) {
				continue
			}
			if !filters.EndDate.IsZero() && slot.StartTime.After(filters.EndDate) {
				continue
			}
			if filters.Status != "" && slot.Status != filters.Status {
				continue
			}
			if filters.SlotType != "" && slot.SlotType != filters.SlotType {
				continue
			}
		}
		clone := *slot
		out = append(out, &clone)
	}
	sortSlots(out)
	return out, nil
}

func (r *slotRepo) ListAvailable(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Slot
	for _, slot := range r.s.slots {
		if slot.DoctorID != doctorID || slot.Status != model.SlotStatusAvailable {
			continue
		}
		if slot.StartTime.Before(from) || slot.StartTime.After(to) {
			continue
		}
		clone := *slot
		out = append(out, &clone)
	}
	sortSlots(out)
	return out, nil
}

func (r *slotRepo) AvailableDates(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[time.Time]bool)
	for _, slot := range r.s.slots {
		if slot.DoctorID != doctorID || slot.Status != model.SlotStatusAvailable {
			continue
		}
		if slot.StartTime.Before(from) || slot.StartTime.After(to) {
			continue
		}
		day := time.Date(slot.StartTime.Year(), slot.StartTime.Month(), slot.StartTime.Day(), 0, 0, 0, 0, time.UTC)
		seen[day] = true
	}
	var out []time.Time
	for day := range seen {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *slotRepo) CountAvailability(_ context.Context, doctorID uuid.UUID, from, to time.Time) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	available, total := 0, 0
	for _, slot := range r.s.slots {
		if slot.DoctorID != doctorID || slot.Status == model.SlotStatusCancelled {
			continue
		}
		if slot.StartTime.Before(from) || slot.StartTime.After(to) {
			continue
		}
		total++
		if slot.Status == model.SlotStatusAvailable {
			available++
		}
	}
	return available, total, nil
}

func (r *slotRepo) Block(_ context.Context, doctorID, slotID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok || slot.DoctorID != doctorID {
		return repository.ErrNotFound
	}
	if slot.Status != model.SlotStatusAvailable {
		return repository.ErrSlotUnavailable
	}
	slot.Status = model.SlotStatusBlocked
	return nil
}

func (r *slotRepo) DeleteRecurrenceGroup(_ context.Context, doctorID, groupID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, slot := range r.s.slots {
		if slot.DoctorID != doctorID || slot.RecurrenceGroupID == nil || *slot.RecurrenceGroupID != groupID {
			continue
		}
		if slot.Status != model.SlotStatusAvailable {
			continue
		}
		delete(r.s.slots, id)
		deleted++
	}
	return deleted, nil
}

func (r *slotRepo) ReserveEarliest(_ context.Context, doctorID uuid.UUID, from, to time.Time, count int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var candidates []*model.Slot
	for _, slot := range r.s.slots {
		if slot.DoctorID != doctorID || slot.Status != model.SlotStatusAvailable {
			continue
		}
		if slot.StartTime.Before(from) || slot.StartTime.After(to) {
			continue
		}
		candidates = append(candidates, slot)
	}
	sortSlots(candidates)
	var reserved int64
	for i := 0; i < len(candidates) && i < count; i++ {
		candidates[i].Status = model.SlotStatusReserved
		candidates[i].IsUrgentOnly = true
		reserved++
	}
	return reserved, nil
}

func (r *slotRepo) ReleaseReservedBefore(_ context.Context, doctorID uuid.UUID, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var released int64
	for _, slot := range r.s.slots {
		if slot.DoctorID != doctorID || slot.Status != model.SlotStatusReserved {
			continue
		}
		if slot.StartTime.After(before) {
			continue
		}
		slot.Status = model.SlotStatusAvailable
		slot.IsUrgentOnly = false
		released++
	}
	return released, nil
}

func sortSlots(slots []*model.Slot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
}

type bookingRepo struct{ s *Store }

func (r *bookingRepo) bookSlot(booking *model.Booking) error {
	slot, ok := r.s.slots[booking.SlotID]
	if !ok {
		return repository.ErrNotFound
	}
	if slot.Status != model.SlotStatusAvailable {
		return repository.ErrSlotUnavailable
	}
	slot.Status = model.SlotStatusBooked
	return nil
}

func (r *bookingRepo) CreateWithSlot(_ context.Context, booking *model.Booking, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.bookSlot(booking); err != nil {
		return err
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	clone := *booking
	r.s.bookings[booking.ID] = &clone
	r.s.recordEvent(event)
	return nil
}

func (r *bookingRepo) Get(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *bookingRepo) List(_ context.Context, filters *model.BookingFilters, _ *model.Pagination) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.bookings {
		if filters != nil {
			if filters.PatientID != uuid.Nil && b.PatientID != filters.PatientID {
				continue
			}
			if filters.Status != "" && b.Status != filters.Status {
				continue
			}
			if filters.DoctorID != uuid.Nil {
				slot := r.s.slots[b.SlotID]
				if slot == nil || slot.DoctorID != filters.DoctorID {
					continue
				}
			}
		}
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (r *bookingRepo) GetActiveForPatient(_ context.Context, patientID uuid.UUID) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.PatientID == patientID && b.IsActive() {
			clone := *b
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *bookingRepo) LastCompletedSlotStart(_ context.Context, patientID uuid.UUID) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *time.Time
	for _, b := range r.s.bookings {
		if b.PatientID != patientID || b.Status != model.BookingStatusCompleted {
			continue
		}
		slot, ok := r.s.slots[b.SlotID]
		if !ok {
			continue
		}
		if latest == nil || slot.StartTime.After(*latest) {
			start := slot.StartTime
			latest = &start
		}
	}
	return latest, nil
}

func (r *bookingRepo) Cancel(_ context.Context, booking *model.Booking, releaseSlot bool, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *booking
	r.s.bookings[booking.ID] = &clone
	if releaseSlot {
		if slot, ok := r.s.slots[booking.SlotID]; ok {
			slot.Status = model.SlotStatusAvailable
		}
	}
	r.s.recordEvent(event)
	return nil
}

func (r *bookingRepo) UpdateWithEvent(_ context.Context, booking *model.Booking, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *booking
	r.s.bookings[booking.ID] = &clone
	r.s.recordEvent(event)
	return nil
}

func (r *bookingRepo) Reschedule(_ context.Context, old, replacement *model.Booking, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[old.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.bookSlot(replacement); err != nil {
		return err
	}
	if slot, ok := r.s.slots[old.SlotID]; ok {
		slot.Status = model.SlotStatusAvailable
	}
	oldClone := *old
	r.s.bookings[old.ID] = &oldClone
	if replacement.ID == uuid.Nil {
		replacement.ID = uuid.New()
	}
	newClone := *replacement
	r.s.bookings[replacement.ID] = &newClone
	r.s.recordEvent(event)
	return nil
}


type questionnaireRepo struct{ s *Store }

func (r *questionnaireRepo) CreateCompliance(_ context.Context, q *model.ComplianceQuestionnaire) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q.ID = uuid.New()
	clone := *q
	r.s.compliance[q.PatientID] = &clone
	return nil
}

func (r *questionnaireRepo) GetComplianceByPatient(_ context.Context, patientID uuid.UUID) (*model.ComplianceQuestionnaire, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.compliance[patientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *q
	return &clone, nil
}

func (r *questionnaireRepo) CreateTriage(_ context.Context, q *model.TriageQuestionnaire) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q.ID = uuid.New()
	clone := *q
	r.s.triage[q.ID] = &clone
	return nil
}

func (r *questionnaireRepo) GetTriage(_ context.Context, id uuid.UUID) (*model.TriageQuestionnaire, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.triage[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *q
	return &clone, nil
}

func (r *questionnaireRepo) UpdateTriage(_ context.Context, q *model.TriageQuestionnaire) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.triage[q.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *q
	r.s.triage[q.ID] = &clone
	return nil
}

func (r *questionnaireRepo) ListPendingTriageForDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.TriageQuestionnaire, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TriageQuestionnaire
	for _, q := range r.s.triage {
		if !q.RequiresDoctorReview || q.IsApproved != nil {
			continue
		}
		booking, ok := r.s.bookings[q.BookingID]
		if !ok {
			continue
		}
		slot, ok := r.s.slots[booking.SlotID]
		if !ok || slot.DoctorID != doctorID {
			continue
		}
		clone := *q
		out = append(out, &clone)
	}
	return out, nil
}
