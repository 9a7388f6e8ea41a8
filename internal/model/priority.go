package model

// PriorityScore breaks down how a patient ranks for a contested slot.
// Higher totals win; a patient failing the slot's access rules carries
// CanAccessSlot false and the denial reason.
type PriorityScore struct {
	PatientID     string  `json:"patient_id"`
	Total         float64 `json:"total_score"`
	Category      float64 `json:"category_score"`
	Compliance    float64 `json:"compliance_score"`
	Urgency       float64 `json:"urgency_score"`
	WaitTime      float64 `json:"wait_time_score"`
	Penalty       float64 `json:"cancellation_penalty"`
	ReturnBonus   float64 `json:"return_bonus"`
	CanAccessSlot bool    `json:"can_access_slot"`
	Reason        *string `json:"reason,omitempty"`
}
