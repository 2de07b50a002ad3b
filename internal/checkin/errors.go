package checkin

import "errors"

var (
	// ErrAlreadyActive means an open attendance session already exists.
	// This is a state conflict, not a failure: the attempted transition is
	// abandoned with nothing changed.
	ErrAlreadyActive = errors.New("an attendance session is already active")

	// ErrFaceVerificationRequired means a dual check-in was attempted with
	// no usable verification result in the cache.
	ErrFaceVerificationRequired = errors.New("face verification required before dual check-in")

	// ErrNoActiveSession means a check-out was attempted with nothing open.
	ErrNoActiveSession = errors.New("no active attendance session to check out")

	// ErrEarlyCheckoutConfirm means the check-out falls before end of day
	// and needs explicit confirmation to proceed.
	ErrEarlyCheckoutConfirm = errors.New("check-out is before end of day, confirmation required")

	// ErrNoFaceImage means the account has no registered reference face
	// image, so face capture cannot be offered.
	ErrNoFaceImage = errors.New("no reference face image registered")

	// ErrFaceMismatch means the captured frame did not match the reference.
	ErrFaceMismatch = errors.New("face did not match reference image")

	// ErrBusy means another transition is already in flight. One gesture at
	// a time.
	ErrBusy = errors.New("another attendance operation is in progress")
)
