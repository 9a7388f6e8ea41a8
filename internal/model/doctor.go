package model

// SlotDistribution holds the percentage split of generated slots per type.
// The three shares must sum to 100.
type SlotDistribution struct {
	FirstVisit int `json:"first_visit" db:"dist_first_visit"`
	FollowUp   int `json:"follow_up" db:"dist_follow_up"`
	Emergency  int `json:"emergency" db:"dist_emergency"`
}

// DefaultSlotDistribution mirrors a typical practice: mostly follow-ups,
// a fixed emergency reserve.
func DefaultSlotDistribution() SlotDistribution {
	return SlotDistribution{FirstVisit: 20, FollowUp: 70, Emergency: 10}
}

// Valid reports whether the shares sum to 100.
func (d SlotDistribution) Valid() bool {
	return d.FirstVisit >= 0 && d.FollowUp >= 0 && d.Emergency >= 0 &&
		d.FirstVisit+d.FollowUp+d.Emergency == 100
}

type Doctor struct {
	Base
	Email        string  `db:"email" json:"email"`
	PasswordHash string  `db:"password_hash" json:"-"`
	FirstName    string  `db:"first_name" json:"first_name"`
	LastName     string  `db:"last_name" json:"last_name"`
	Phone        *string `db:"phone" json:"phone,omitempty"`

	Specialisation *string `db:"specialisation" json:"specialisation,omitempty"`
	LicenceNumber  *string `db:"licence_number" json:"licence_number,omitempty"`
	Bio            *string `db:"bio" json:"bio,omitempty"`

	DefaultSlotDurationMinutes int              `db:"default_slot_duration_minutes" json:"default_slot_duration_minutes"`
	BookingWindowDays          int              `db:"booking_window_days" json:"booking_window_days"`
	MaxDailyAppointments       int              `db:"max_daily_appointments" json:"max_daily_appointments"`
	SlotDistribution           SlotDistribution `db:"-" json:"slot_distribution"`
	AutoGenerateDays           int              `db:"auto_generate_days" json:"auto_generate_days"`

	IsActive bool `db:"is_active" json:"is_active"`
}

// FullName returns the doctor's display name.
func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

type UpdateDoctorRequest struct {
	FirstName                  *string           `json:"first_name" binding:"omitempty,max=100"`
	LastName                   *string           `json:"last_name" binding:"omitempty,max=100"`
	Phone                      *string           `json:"phone" binding:"omitempty,max=20"`
	Specialisation             *string           `json:"specialisation" binding:"omitempty,max=100"`
	Bio                        *string           `json:"bio"`
	DefaultSlotDurationMinutes *int              `json:"default_slot_duration_minutes" binding:"omitempty,min=5,max=240"`
	BookingWindowDays          *int              `json:"booking_window_days" binding:"omitempty,min=1,max=365"`
	MaxDailyAppointments       *int              `json:"max_daily_appointments" binding:"omitempty,min=1"`
	SlotDistribution           *SlotDistribution `json:"slot_distribution"`
	AutoGenerateDays           *int              `json:"auto_generate_days" binding:"omitempty,min=1,max=365"`
}
