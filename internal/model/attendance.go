package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// VerificationMethod describes how a check-in was authorized.
type VerificationMethod string

const (
	MethodGPSOnly VerificationMethod = "GPS_ONLY"
	MethodFaceGPS VerificationMethod = "FACE_GPS"
)

// Decimal is a float64 that unmarshals from either a JSON number or a
// numeric string. The backend serializes coordinates as decimal strings.
type Decimal float64

func (d *Decimal) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*d = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse decimal %q: %w", s, err)
		}
		*d = Decimal(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*d = Decimal(f)
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(d))
}

// Coordinates is a GPS position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AttendanceRecord mirrors one attendance row owned by the backend. The agent
// never mutates it locally; changes go through the REST API.
type AttendanceRecord struct {
	ID                int64              `json:"id"`
	UserID            int64              `json:"user"`
	UserEmail         string             `json:"user_email"`
	UserName          string             `json:"user_name,omitempty"`
	LocationID        *int64             `json:"location"`
	LocationName      string             `json:"location_name,omitempty"`
	CheckInTime       time.Time          `json:"check_in_time"`
	CheckOutTime      *time.Time         `json:"check_out_time"`
	CheckInLatitude   Decimal            `json:"check_in_latitude"`
	CheckInLongitude  Decimal            `json:"check_in_longitude"`
	CheckOutLatitude  *Decimal           `json:"check_out_latitude"`
	CheckOutLongitude *Decimal           `json:"check_out_longitude"`
	IsVerified        bool               `json:"is_verified"`
	IsLate            bool               `json:"is_late"`
	IsAbsent          bool               `json:"is_absent"`
	Method            VerificationMethod `json:"verification_method"`
	Notes             string             `json:"notes,omitempty"`
}

// Active reports whether the record represents an open session.
func (r AttendanceRecord) Active() bool {
	return r.CheckOutTime == nil
}

// BelongsTo reports whether the record is owned by the given user, matching
// by id when present and falling back to email.
func (r AttendanceRecord) BelongsTo(userID int64, email string) bool {
	if r.UserID != 0 && userID != 0 {
		return r.UserID == userID
	}
	return r.UserEmail != "" && r.UserEmail == email
}
