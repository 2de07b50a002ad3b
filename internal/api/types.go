package api

import (
	"time"

	"github.com/hollis-dev/rollcall/internal/model"
)

// LoginResponse is the token endpoint's reply.
type LoginResponse struct {
	Token        string `json:"token"`
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	IsStaff      bool   `json:"is_staff"`
	IsSupervisor bool   `json:"is_supervisor"`
}

// FaceVerificationPayload rides along with a dual-verification check-in so
// the backend can record how the session was authorized.
type FaceVerificationPayload struct {
	Verified   bool      `json:"verified"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// CheckInRequest is the body of the check-in call. IsLate is a pointer
// because absent and false mean different things: when the field is omitted
// the backend computes lateness itself, and a spurious false would override
// it.
type CheckInRequest struct {
	Latitude         float64                  `json:"latitude"`
	Longitude        float64                  `json:"longitude"`
	Method           model.VerificationMethod `json:"verification_method"`
	IsLate           *bool                    `json:"is_late,omitempty"`
	FaceVerification *FaceVerificationPayload `json:"face_verification,omitempty"`
}

// CheckOutRequest closes an open attendance record.
type CheckOutRequest struct {
	AttendanceID int64   `json:"attendance_id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// AttendanceUpdate is a partial update, used to upgrade a GPS-only record to
// dual verification.
type AttendanceUpdate struct {
	Method model.VerificationMethod `json:"verification_method,omitempty"`
	Notes  string                   `json:"notes,omitempty"`
}

// FaceCheckInResult is the normalized outcome of the face check-in endpoint,
// which doubles as a pure verification call. Attendance is non-nil when the
// backend created a record as a side effect.
type FaceCheckInResult struct {
	Matched    bool
	Confidence float64
	Attendance *model.AttendanceRecord
}

// Summary is the current-month attendance summary for the device account.
type Summary struct {
	UserID          int64   `json:"user_id"`
	UserEmail       string  `json:"user_email"`
	Month           int     `json:"month"`
	Year            int     `json:"year"`
	DaysPresent     int     `json:"days_present"`
	TotalHours      float64 `json:"total_hours"`
	AttendanceCount int     `json:"attendance_count"`
}

// attendanceEnvelope is the {message, attendance} wrapper the mutation
// endpoints use.
type attendanceEnvelope struct {
	Message    string                  `json:"message"`
	Attendance *model.AttendanceRecord `json:"attendance"`
}

// faceVerificationInfo tolerates both field spellings the backend has used
// for the match flag, and both confidence scales (percent vs 0-1 similarity).
type faceVerificationInfo struct {
	Match      bool    `json:"match"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
}

func (f faceVerificationInfo) matched() bool {
	return f.Match || f.Matched
}

func (f faceVerificationInfo) confidencePercent() float64 {
	if f.Confidence > 0 {
		return f.Confidence
	}
	return f.Similarity * 100
}

type faceCheckInEnvelope struct {
	Message          string                  `json:"message"`
	Attendance       *model.AttendanceRecord `json:"attendance"`
	FaceVerification *faceVerificationInfo   `json:"face_verification"`
}

type faceProbeResponse struct {
	HasFaceImage      bool `json:"has_face_image"`
	HasMultipleImages bool `json:"has_multiple_images"`
	FaceImageCount    int  `json:"face_image_count"`
}
