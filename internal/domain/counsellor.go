package domain

// Counsellor is the profile a connection carries after going on duty.
// Availability is derived solely from having a live connection with a
// profile attached, never persisted.
type Counsellor struct {
	ID   string `json:"counsellorId"`
	Name string `json:"counsellorName"`
}
