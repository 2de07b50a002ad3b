package model

import "time"

// VerificationResult is the outcome of a face verification attempt, cached
// locally so it can authorize a dual check-in performed shortly afterwards.
type VerificationResult struct {
	Verified   bool        `json:"verified"`
	Confidence float64     `json:"confidence"`
	Coords     Coordinates `json:"coords"`
	Timestamp  time.Time   `json:"timestamp"`
	ExpiresAt  time.Time   `json:"expires_at"`

	// ExistingAttendanceID is set when the backend's face check-in endpoint
	// created an attendance record as a side effect of verifying. Zero means
	// no record was created.
	ExistingAttendanceID int64 `json:"existing_attendance_id,omitempty"`
}

// Expired reports whether the result is no longer usable at the given time.
func (v VerificationResult) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
